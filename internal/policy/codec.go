package policy

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/condition"
	"github.com/breeze-rmm/monitor/internal/condoc"
)

// Document key names under the [Policy.*] sections.
const (
	keyID           = "ID"
	keyName         = "Name"
	keySeverity     = "Severity"
	keyPriority     = "Priority"
	keyPath         = "Path"
	keyAgentPolicy  = "Agent_Policy"
	keyEnabled      = "Enabled"
	keyNoLongerMet  = "When_no_longer_met"
	keyResetEvery   = "Reset_Interval"
	keyNotifyReset  = "Notify_on_reset"
	keyTriggerAgain = "Trigger_again_if_condition_is_still_true_after_reset"
	keyChannels     = "Channels"
	keyTechnician   = "Technician_notification"
	keyMode         = "Mode"
	keyTemplate     = "Template"
	keyRunAs        = "Run_As"
)

// DecodeBinding reads a full policy document: the [Policy.*] sections plus
// the single [Condition.*] variant. A document without an ID is assigned one
// at load time.
func DecodeBinding(doc *condoc.Document) (*Binding, error) {
	head := doc.Find("Policy")
	if head == nil {
		return nil, configErrf("Policy", "missing [Policy] section")
	}

	d := &bindingDecoder{doc: doc}
	b := &Binding{
		Name:     d.require(head, "Policy", keyName),
		Severity: Severity(d.option(head, "Policy", keySeverity, SeverityOptions)),
		Priority: Priority(d.option(head, "Policy", keyPriority, PriorityOptions)),
	}

	if raw, ok := head.Get(keyID); ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			d.fail("Policy", "%s: %v", keyID, err)
		}
		b.ID = id
	} else {
		b.ID = uuid.New()
	}

	if target := doc.Find("Policy", "Target"); target != nil {
		b.Scope.Path = d.require(target, "Policy.Target", keyPath)
		b.Scope.AgentPolicy, _ = target.Get(keyAgentPolicy)
	}

	if ar := doc.Find("Policy", "Auto_Reset"); ar != nil {
		b.AutoReset.Enabled = d.bool(ar, "Policy.Auto_Reset", keyEnabled)
		if b.AutoReset.Enabled {
			b.AutoReset.WhenNoLongerMet = d.bool(ar, "Policy.Auto_Reset", keyNoLongerMet)
			b.AutoReset.NotifyOnReset = d.bool(ar, "Policy.Auto_Reset", keyNotifyReset)
			b.AutoReset.TriggerAgain = d.bool(ar, "Policy.Auto_Reset", keyTriggerAgain)
			if raw, ok := ar.Get(keyResetEvery); ok && strings.TrimSpace(raw) != "" {
				w, err := condition.ParseWindow(raw)
				if err != nil {
					d.fail("Policy.Auto_Reset", "%s: %v", keyResetEvery, err)
				}
				b.AutoReset.ResetInterval = w
			}
		}
	}

	b.Dispatch.Technicians = TechSuppressed
	if notify := doc.Find("Policy", "Notify"); notify != nil {
		if raw, ok := notify.Get(keyChannels); ok {
			for _, ch := range strings.Split(raw, ",") {
				if ch = strings.TrimSpace(ch); ch != "" {
					b.Dispatch.Channels = append(b.Dispatch.Channels, ch)
				}
			}
		}
		if raw, ok := notify.Get(keyTechnician); ok {
			b.Dispatch.Technicians = TechnicianMode(d.validated("Policy.Notify", keyTechnician, raw, TechnicianModeOptions))
		}
	}

	b.Dispatch.Ticketing.Mode = TicketDisabled
	if tick := doc.Find("Policy", "Ticketing"); tick != nil {
		if raw, ok := tick.Get(keyMode); ok {
			b.Dispatch.Ticketing.Mode = TicketMode(d.validated("Policy.Ticketing", keyMode, raw, TicketModeOptions))
		}
		b.Dispatch.Ticketing.Template, _ = tick.Get(keyTemplate)
	}

	for _, sec := range doc.NumberedChildren("Policy", "Automation") {
		path := "Policy.Automation." + sec.Name()
		auto := AutomationRef{Name: d.require(sec, path, keyName)}
		if raw, ok := sec.Get(keyRunAs); ok {
			auto.RunAs = RunAs(d.validated(path, keyRunAs, raw, RunAsOptions))
		} else {
			auto.RunAs = RunAsSystem
		}
		// Every remaining key is a positional parameter, in document order.
		for _, kv := range sec.Keys {
			if kv.Key == keyName || kv.Key == keyRunAs {
				continue
			}
			auto.Parameters = append(auto.Parameters, Parameter{Name: kv.Key, Value: kv.Value})
		}
		b.Dispatch.Automations = append(b.Dispatch.Automations, auto)
	}

	cond, err := condition.DecodeCondition(doc)
	if err != nil {
		if d.err == nil {
			d.err = err
		}
	} else {
		b.Condition = cond
	}

	if d.err != nil {
		return nil, d.err
	}
	return b, nil
}

// EncodeBinding writes the binding to a document in canonical section order.
// decode(encode(b)) yields an identical structure.
func EncodeBinding(b *Binding) *condoc.Document {
	doc := &condoc.Document{}

	head := doc.Add("Policy")
	head.Set(keyID, b.ID.String())
	head.Set(keyName, b.Name)
	head.Set(keySeverity, string(b.Severity))
	head.Set(keyPriority, string(b.Priority))

	target := doc.Add("Policy", "Target")
	target.Set(keyPath, b.Scope.Path)
	if b.Scope.AgentPolicy != "" {
		target.Set(keyAgentPolicy, b.Scope.AgentPolicy)
	}

	ar := doc.Add("Policy", "Auto_Reset")
	ar.Set(keyEnabled, strconv.FormatBool(b.AutoReset.Enabled))
	if b.AutoReset.Enabled {
		ar.Set(keyNoLongerMet, strconv.FormatBool(b.AutoReset.WhenNoLongerMet))
		if !b.AutoReset.ResetInterval.IsZero() {
			ar.Set(keyResetEvery, b.AutoReset.ResetInterval.String())
		}
		ar.Set(keyNotifyReset, strconv.FormatBool(b.AutoReset.NotifyOnReset))
		ar.Set(keyTriggerAgain, strconv.FormatBool(b.AutoReset.TriggerAgain))
	}

	notify := doc.Add("Policy", "Notify")
	if len(b.Dispatch.Channels) > 0 {
		notify.Set(keyChannels, strings.Join(b.Dispatch.Channels, ", "))
	}
	notify.Set(keyTechnician, string(b.Dispatch.Technicians))

	tick := doc.Add("Policy", "Ticketing")
	tick.Set(keyMode, string(b.Dispatch.Ticketing.Mode))
	if b.Dispatch.Ticketing.Template != "" {
		tick.Set(keyTemplate, b.Dispatch.Ticketing.Template)
	}

	for i, auto := range b.Dispatch.Automations {
		sec := doc.Add("Policy", "Automation", strconv.Itoa(i+1))
		sec.Set(keyName, auto.Name)
		sec.Set(keyRunAs, string(auto.RunAs))
		for _, p := range auto.Parameters {
			sec.Set(p.Name, p.Value)
		}
	}

	if b.Condition != nil {
		condition.EncodeCondition(b.Condition, doc)
	}
	return doc
}

// bindingDecoder collects the first error while reading typed keys.
type bindingDecoder struct {
	doc *condoc.Document
	err error
}

func (d *bindingDecoder) fail(path, format string, args ...any) {
	if d.err == nil {
		d.err = configErrf(path, format, args...)
	}
}

func (d *bindingDecoder) require(sec *condoc.Section, path, key string) string {
	v, ok := sec.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		d.fail(path, "missing mandatory parameter %s", key)
		return ""
	}
	return v
}

func (d *bindingDecoder) option(sec *condoc.Section, path, key, options string) string {
	raw := d.require(sec, path, key)
	if raw == "" {
		return ""
	}
	return d.validated(path, key, raw, options)
}

func (d *bindingDecoder) validated(path, key, raw, options string) string {
	opt, err := condoc.ValidateOption(raw, options)
	if err != nil {
		d.fail(path, "%s: %v", key, err)
		return ""
	}
	return opt
}

func (d *bindingDecoder) bool(sec *condoc.Section, path, key string) bool {
	raw, ok := sec.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		d.fail(path, "%s: %v", key, err)
		return false
	}
	return v
}
