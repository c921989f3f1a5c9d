package condition

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/condoc"
)

// Document key names. These are the wire spellings; the section path under
// [Condition.*] carries the variant discriminator.
const (
	keyOperator     = "Operator"
	keyThreshold    = "Threshold"
	keyUnit         = "Unit"
	keyDuration     = "Duration"
	keyDrive        = "Drive"
	keyName         = "Name"
	keyState        = "State"
	keyStatus       = "Status"
	keyStatuses     = "Statuses"
	keySource       = "Source"
	keyEventIDs     = "Event_IDs"
	keyTrigger      = "If_the_events_trigger"
	keyResult       = "Result"
	keyScore        = "Score"
	keyDays         = "Days"
	keyResource     = "Resource"
	keyPendingFor   = "Pending_For"
	keyMatch        = "Match"
	keyField        = "Field"
	keyType         = "Type"
	keyComparator   = "Comparator"
	keyValue        = "Value"
	keyText         = "Text"
	keyScript       = "Script"
	keyScriptType   = "Script_Type"
	keyRunEvery     = "Run_Every"
	keyTimeout      = "Timeout"
	keyScriptErrNot = "Script_error_notification"
	keyUptimeDelay  = "System_Uptime_Delay"
	keyController   = "Controller"
	keyVirtDrives   = "Virtual_Drives"
	keyPhysDrives   = "Physical_Drives"
	keyBatteryBack  = "Battery_Backup"
)

// DecodeCondition reads the [Condition.*] sections of a document into the
// tagged union. Exactly one condition variant section must be present.
func DecodeCondition(doc *condoc.Document) (*Condition, error) {
	variants := doc.Children("Condition")
	if len(variants) == 0 {
		return nil, configErrf("Condition", "no condition variant section found")
	}
	if len(variants) > 1 {
		names := make([]string, len(variants))
		for i, s := range variants {
			names[i] = s.Name()
		}
		return nil, configErrf("Condition", "exactly one variant may be configured, found %v", names)
	}

	sec := variants[0]
	kind, err := KindForSection(sec.Name())
	if err != nil {
		return nil, configErrf("Condition", "%v", err)
	}

	d := &decoder{doc: doc, sec: sec, path: "Condition." + sec.Name()}
	c := &Condition{Kind: kind}

	switch kind {
	case AntivirusHealthKind:
		var statuses []AVStatus
		for _, raw := range d.stringList(keyStatuses) {
			opt, err := condoc.ValidateOption(raw, AVStatusOptions)
			if err != nil {
				d.fail("%v", err)
				continue
			}
			statuses = append(statuses, AVStatus(opt))
		}
		c.AntivirusHealth = &AntivirusHealth{Statuses: statuses}

	case BatteryMonitoringKind:
		c.BatteryMonitoring = &BatteryMonitoring{
			Op:        d.operator(keyOperator),
			Threshold: Percent(d.float(keyThreshold)),
		}

	case BitlockerStatusKind:
		c.BitlockerStatus = &BitlockerStatus{
			Status: BitlockerState(d.option(keyStatus, BitlockerOptions)),
		}

	case CPUKind:
		c.CPU = &CPU{
			Op:        d.operator(keyOperator),
			Threshold: Percent(d.float(keyThreshold)),
			Duration:  d.window(keyDuration),
		}

	case CriticalEventsKind:
		c.CriticalEvents = &CriticalEvents{
			TriggerCount: d.int(keyTrigger),
			Duration:     d.window(keyDuration),
		}

	case CustomFieldsKind:
		c.CustomFields = &CustomFields{Clauses: d.clauseGroup()}

	case DeviceDownKind:
		c.DeviceDown = &DeviceDown{Duration: d.window(keyDuration)}

	case DiskActiveTimeKind:
		c.DiskActiveTime = &DiskActiveTime{
			Drive:     d.optional(keyDrive),
			Op:        d.operator(keyOperator),
			Threshold: Percent(d.float(keyThreshold)),
			Duration:  d.window(keyDuration),
		}

	case DiskFreeSpaceKind:
		c.DiskFreeSpace = &DiskFreeSpace{
			Drive:     d.optional(keyDrive),
			Op:        d.operator(keyOperator),
			Threshold: Bytes(d.float(keyThreshold), ByteUnit(d.option(keyUnit, ByteUnitOptions))),
		}

	case DiskTransferRateKind:
		c.DiskTransferRate = &DiskTransferRate{
			Drive:     d.optional(keyDrive),
			Op:        d.operator(keyOperator),
			Threshold: Rate(d.float(keyThreshold), RateUnit(d.option(keyUnit, RateUnitOptions))),
			Duration:  d.window(keyDuration),
		}

	case DiskUsageKind:
		c.DiskUsage = &DiskUsage{
			Drive:     d.optional(keyDrive),
			Op:        d.operator(keyOperator),
			Threshold: d.unitUnion(),
			Duration:  d.window(keyDuration),
		}

	case MemoryKind:
		c.Memory = &Memory{
			Op:        d.operator(keyOperator),
			Threshold: d.unitUnion(),
			Duration:  d.window(keyDuration),
		}

	case NetworkUtilizationKind:
		c.NetworkUtilization = &NetworkUtilization{
			Op:        d.operator(keyOperator),
			Threshold: Rate(d.float(keyThreshold), RateUnit(d.option(keyUnit, RateUnitOptions))),
			Duration:  d.window(keyDuration),
		}

	case OSPatchCVSSScoreKind:
		c.OSPatchCVSSScore = &OSPatchCVSSScore{
			Op:    d.operator(keyOperator),
			Score: d.float(keyScore),
		}

	case PatchLastInstalledKind:
		c.PatchLastInstalled = &PatchLastInstalled{
			Op:   d.operator(keyOperator),
			Days: d.int(keyDays),
		}

	case ProcessKind:
		c.Process = &Process{
			Name:              d.string(keyName),
			State:             PresenceState(d.option(keyState, PresenceOptions)),
			SystemUptimeDelay: d.optionalWindow(keyUptimeDelay),
		}

	case ProcessResourceKind:
		v := &ProcessResource{
			Name:     d.string(keyName),
			Metric:   ProcessMetric(d.option(keyResource, ProcessMetricOptions)),
			Op:       d.operator(keyOperator),
			Duration: d.window(keyDuration),
		}
		if unit, ok := d.sec.Get(keyUnit); ok {
			v.Threshold = Bytes(d.float(keyThreshold), ByteUnit(unit))
		} else {
			v.Threshold = Percent(d.float(keyThreshold))
		}
		c.ProcessResource = v

	case RAIDHealthStatusKind:
		c.RAIDHealthStatus = &RAIDHealthStatus{
			Controller:     RAIDSeverity(d.option(keyController, RAIDSeverityOptions)),
			VirtualDrives:  RAIDSeverity(d.option(keyVirtDrives, RAIDSeverityOptions)),
			PhysicalDrives: RAIDSeverity(d.option(keyPhysDrives, RAIDSeverityOptions)),
			BatteryBackup:  RAIDSeverity(d.option(keyBatteryBack, RAIDSeverityOptions)),
		}

	case RebootPendingKind:
		c.RebootPending = &RebootPending{PendingFor: d.window(keyPendingFor)}

	case ScriptResultKind:
		c.ScriptResult = d.scriptResult()

	case SoftwareKind:
		c.Software = &Software{
			Name:  d.string(keyName),
			State: PresenceState(d.option(keyState, PresenceOptions)),
		}

	case SystemUptimeKind:
		c.SystemUptime = &SystemUptime{
			Op:       d.operator(keyOperator),
			Duration: d.window(keyDuration),
		}

	case WindowsEventKind:
		c.WindowsEvent = &WindowsEvent{
			Source:       d.string(keySource),
			EventIDs:     d.intList(keyEventIDs),
			Result:       Aggregation(d.option(keyResult, AggregationOptions)),
			TriggerCount: d.int(keyTrigger),
			Duration:     d.window(keyDuration),
			Filters:      d.textFilters("Filter"),
		}

	case WindowsServiceKind:
		c.WindowsService = &WindowsService{
			Name:              d.string(keyName),
			State:             ServiceState(d.option(keyState, ServiceStateOptions)),
			SystemUptimeDelay: d.optionalWindow(keyUptimeDelay),
		}

	case WindowsSMARTStatusKind:
		c.WindowsSMARTStatus = &WindowsSMARTStatus{}
	}

	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}

// EncodeCondition appends the [Condition.*] sections for c to the document.
// The encoding is canonical: decode(encode(c)) yields an identical structure,
// including which union arm is populated.
func EncodeCondition(c *Condition, doc *condoc.Document) {
	name := c.Kind.Section()
	sec := doc.Add("Condition", name)

	switch c.Kind {
	case AntivirusHealthKind:
		parts := make([]string, len(c.AntivirusHealth.Statuses))
		for i, st := range c.AntivirusHealth.Statuses {
			parts[i] = string(st)
		}
		sec.Set(keyStatuses, strings.Join(parts, ", "))

	case BatteryMonitoringKind:
		v := c.BatteryMonitoring
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))

	case BitlockerStatusKind:
		sec.Set(keyStatus, string(c.BitlockerStatus.Status))

	case CPUKind:
		v := c.CPU
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		sec.Set(keyDuration, v.Duration.String())

	case CriticalEventsKind:
		v := c.CriticalEvents
		sec.Set(keyTrigger, strconv.Itoa(v.TriggerCount))
		sec.Set(keyDuration, v.Duration.String())

	case CustomFieldsKind:
		v := c.CustomFields
		sec.Set(keyMatch, string(v.Clauses.Mode))
		for i, cl := range v.Clauses.Clauses {
			clSec := doc.Add("Condition", name, "Clause", strconv.Itoa(i+1))
			clSec.Set(keyField, cl.Field.String())
			clSec.Set(keyType, string(cl.Type))
			clSec.Set(keyComparator, string(cl.Comparator))
			if cl.Comparator != Exists && cl.Comparator != DoesNotExist {
				clSec.Set(keyValue, cl.Value)
			}
		}

	case DeviceDownKind:
		sec.Set(keyDuration, c.DeviceDown.Duration.String())

	case DiskActiveTimeKind:
		v := c.DiskActiveTime
		setDrive(sec, v.Drive)
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		sec.Set(keyDuration, v.Duration.String())

	case DiskFreeSpaceKind:
		v := c.DiskFreeSpace
		setDrive(sec, v.Drive)
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		sec.Set(keyUnit, string(v.Threshold.ByteUnit))

	case DiskTransferRateKind:
		v := c.DiskTransferRate
		setDrive(sec, v.Drive)
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		sec.Set(keyUnit, string(v.Threshold.RateUnit))
		sec.Set(keyDuration, v.Duration.String())

	case DiskUsageKind:
		v := c.DiskUsage
		setDrive(sec, v.Drive)
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyDuration, v.Duration.String())
		encodeUnitUnion(doc, name, v.Threshold)

	case MemoryKind:
		v := c.Memory
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyDuration, v.Duration.String())
		encodeUnitUnion(doc, name, v.Threshold)

	case NetworkUtilizationKind:
		v := c.NetworkUtilization
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		sec.Set(keyUnit, string(v.Threshold.RateUnit))
		sec.Set(keyDuration, v.Duration.String())

	case OSPatchCVSSScoreKind:
		v := c.OSPatchCVSSScore
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyScore, formatFloat(v.Score))

	case PatchLastInstalledKind:
		v := c.PatchLastInstalled
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyDays, strconv.Itoa(v.Days))

	case ProcessKind:
		v := c.Process
		sec.Set(keyName, v.Name)
		sec.Set(keyState, string(v.State))
		if !v.SystemUptimeDelay.IsZero() {
			sec.Set(keyUptimeDelay, v.SystemUptimeDelay.String())
		}

	case ProcessResourceKind:
		v := c.ProcessResource
		sec.Set(keyName, v.Name)
		sec.Set(keyResource, string(v.Metric))
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyThreshold, formatFloat(v.Threshold.Magnitude))
		if v.Threshold.Kind == KindBytes {
			sec.Set(keyUnit, string(v.Threshold.ByteUnit))
		}
		sec.Set(keyDuration, v.Duration.String())

	case RAIDHealthStatusKind:
		v := c.RAIDHealthStatus
		sec.Set(keyController, string(v.Controller))
		sec.Set(keyVirtDrives, string(v.VirtualDrives))
		sec.Set(keyPhysDrives, string(v.PhysicalDrives))
		sec.Set(keyBatteryBack, string(v.BatteryBackup))

	case RebootPendingKind:
		sec.Set(keyPendingFor, c.RebootPending.PendingFor.String())

	case ScriptResultKind:
		encodeScriptResult(doc, name, sec, c.ScriptResult)

	case SoftwareKind:
		v := c.Software
		sec.Set(keyName, v.Name)
		sec.Set(keyState, string(v.State))

	case SystemUptimeKind:
		v := c.SystemUptime
		sec.Set(keyOperator, string(v.Op))
		sec.Set(keyDuration, v.Duration.String())

	case WindowsEventKind:
		v := c.WindowsEvent
		sec.Set(keySource, v.Source)
		if len(v.EventIDs) > 0 {
			ids := make([]string, len(v.EventIDs))
			for i, id := range v.EventIDs {
				ids[i] = strconv.Itoa(id)
			}
			sec.Set(keyEventIDs, strings.Join(ids, ", "))
		}
		sec.Set(keyResult, string(v.Result))
		sec.Set(keyTrigger, strconv.Itoa(v.TriggerCount))
		sec.Set(keyDuration, v.Duration.String())
		for i, f := range v.Filters {
			fSec := doc.Add("Condition", name, "Filter", strconv.Itoa(i+1))
			fSec.Set(keyOperator, string(f.Mode))
			fSec.Set(keyText, f.Text)
		}

	case WindowsServiceKind:
		v := c.WindowsService
		sec.Set(keyName, v.Name)
		sec.Set(keyState, string(v.State))
		if !v.SystemUptimeDelay.IsZero() {
			sec.Set(keyUptimeDelay, v.SystemUptimeDelay.String())
		}

	case WindowsSMARTStatusKind:
		// Marker section, no keys.
	}
}

func setDrive(sec *condoc.Section, drive string) {
	if drive != "" {
		sec.Set(keyDrive, drive)
	}
}

func encodeUnitUnion(doc *condoc.Document, variant string, t Threshold) {
	switch t.Kind {
	case KindPercent:
		arm := doc.Add("Condition", variant, "Unit", "Percent")
		arm.Set(keyThreshold, formatFloat(t.Magnitude))
	case KindBytes:
		arm := doc.Add("Condition", variant, "Unit", "Byte")
		arm.Set(keyThreshold, formatFloat(t.Magnitude))
		arm.Set(keyUnit, string(t.ByteUnit))
	}
}

func encodeScriptResult(doc *condoc.Document, name string, sec *condoc.Section, v *ScriptResult) {
	sec.Set(keyScript, v.Script)
	if v.ScriptType != "" {
		sec.Set(keyScriptType, v.ScriptType)
	}
	sec.Set(keyRunEvery, v.RunEvery.String())
	sec.Set(keyTimeout, v.Timeout.String())
	sec.Set(keyScriptErrNot, strconv.FormatBool(v.ErrorNotification))

	rc := doc.Add("Condition", name, "Result_Code")
	if v.ResultCode.Any {
		rc.Set(keyOperator, ResultCodeAny)
	} else {
		rc.Set(keyOperator, string(v.ResultCode.Op))
		rc.Set(keyValue, strconv.Itoa(v.ResultCode.Value))
	}

	if len(v.Output) > 0 {
		wo := doc.Add("Condition", name, "With_Output")
		agg := v.OutputAggregation
		if agg == "" {
			agg = All
		}
		wo.Set(keyResult, string(agg))
		for i, m := range v.Output {
			mSec := doc.Add("Condition", name, "With_Output", strconv.Itoa(i+1))
			mSec.Set(keyOperator, string(m.Mode))
			if m.Mode != OutNotEmpty {
				mSec.Set(keyText, m.Text)
			}
		}
	}
}

// decoder collects the first error while reading typed keys out of a variant
// section.
type decoder struct {
	doc  *condoc.Document
	sec  *condoc.Section
	path string
	err  error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = configErrf(d.path, format, args...)
	}
}

func (d *decoder) string(key string) string {
	v, ok := d.sec.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		d.fail("missing mandatory parameter %s", key)
		return ""
	}
	return v
}

func (d *decoder) optional(key string) string {
	v, _ := d.sec.Get(key)
	return v
}

func (d *decoder) float(key string) float64 {
	raw := d.string(key)
	if d.err != nil {
		return 0
	}
	// Percent thresholds may carry a trailing % sign.
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.fail("%s: %v", key, err)
		return 0
	}
	return f
}

func (d *decoder) int(key string) int {
	raw := d.string(key)
	if d.err != nil {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		d.fail("%s: %v", key, err)
		return 0
	}
	return n
}

// bool reads an optional boolean key, defaulting to false when absent.
func (d *decoder) bool(key string) bool {
	raw, ok := d.sec.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		d.fail("%s: %v", key, err)
		return false
	}
	return b
}

func (d *decoder) operator(key string) Operator {
	raw := d.string(key)
	if d.err != nil {
		return ""
	}
	op, err := ParseOperator(raw)
	if err != nil {
		d.fail("%s: %v", key, err)
		return ""
	}
	return op
}

func (d *decoder) option(key, options string) string {
	raw := d.string(key)
	if d.err != nil {
		return ""
	}
	opt, err := condoc.ValidateOption(raw, options)
	if err != nil {
		d.fail("%s: %v", key, err)
		return ""
	}
	return opt
}

func (d *decoder) window(key string) Window {
	raw := d.string(key)
	if d.err != nil {
		return Window{}
	}
	w, err := ParseWindow(raw)
	if err != nil {
		d.fail("%s: %v", key, err)
		return Window{}
	}
	return w
}

func (d *decoder) optionalWindow(key string) Window {
	raw, ok := d.sec.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return Window{}
	}
	w, err := ParseWindow(raw)
	if err != nil {
		d.fail("%s: %v", key, err)
		return Window{}
	}
	return w
}

func (d *decoder) stringList(key string) []string {
	raw := d.string(key)
	if d.err != nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (d *decoder) intList(key string) []int {
	raw, ok := d.sec.Get(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			d.fail("%s: %v", key, err)
			return nil
		}
		out = append(out, n)
	}
	return out
}

// unitUnion reads the [<variant>.Unit.Percent] / [<variant>.Unit.Byte]
// subsection pair: the populated arm selects the threshold family.
func (d *decoder) unitUnion() Threshold {
	variant := d.sec.Name()
	percentArm := d.doc.Find("Condition", variant, "Unit", "Percent")
	byteArm := d.doc.Find("Condition", variant, "Unit", "Byte")

	switch {
	case percentArm != nil && byteArm != nil:
		d.fail("Unit union: both Percent and Byte arms populated")
		return Threshold{}
	case percentArm != nil:
		sub := &decoder{doc: d.doc, sec: percentArm, path: d.path + ".Unit.Percent"}
		t := Percent(sub.float(keyThreshold))
		if sub.err != nil {
			d.err = sub.err
		}
		return t
	case byteArm != nil:
		sub := &decoder{doc: d.doc, sec: byteArm, path: d.path + ".Unit.Byte"}
		t := Bytes(sub.float(keyThreshold), ByteUnit(sub.option(keyUnit, ByteUnitOptions)))
		if sub.err != nil {
			d.err = sub.err
		}
		return t
	}
	d.fail("Unit union: neither Percent nor Byte arm populated")
	return Threshold{}
}

func (d *decoder) clauseGroup() ClauseGroup {
	g := ClauseGroup{Mode: Aggregation(d.option(keyMatch, AggregationOptions))}

	variant := d.sec.Name()
	for _, clSec := range d.doc.NumberedChildren("Condition", variant, "Clause") {
		sub := &decoder{doc: d.doc, sec: clSec, path: d.path + ".Clause." + clSec.Name()}
		cl := FieldClause{
			Type:       FieldType(sub.option(keyType, FieldTypeOptions)),
			Comparator: Comparator(sub.option(keyComparator, TextComparatorOptions)),
			Value:      sub.optional(keyValue),
		}
		if raw := sub.string(keyField); sub.err == nil {
			id, err := uuid.Parse(raw)
			if err != nil {
				sub.fail("%s: %v", keyField, err)
			}
			cl.Field = id
		}
		if sub.err != nil {
			if d.err == nil {
				d.err = sub.err
			}
			continue
		}
		g.Clauses = append(g.Clauses, cl)
	}
	return g
}

func (d *decoder) textFilters(section string) []TextFilter {
	variant := d.sec.Name()
	var out []TextFilter
	for _, fSec := range d.doc.NumberedChildren("Condition", variant, section) {
		sub := &decoder{doc: d.doc, sec: fSec, path: d.path + "." + section + "." + fSec.Name()}
		f := TextFilter{
			Mode: Comparator(sub.option(keyOperator, "Contains / Contains none")),
			Text: sub.string(keyText),
		}
		if sub.err != nil {
			if d.err == nil {
				d.err = sub.err
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

func (d *decoder) scriptResult() *ScriptResult {
	variant := d.sec.Name()
	v := &ScriptResult{
		Script:            d.string(keyScript),
		ScriptType:        d.optional(keyScriptType),
		RunEvery:          d.window(keyRunEvery),
		Timeout:           d.window(keyTimeout),
		ErrorNotification: d.bool(keyScriptErrNot),
	}

	rc := d.doc.Find("Condition", variant, "Result_Code")
	if rc == nil {
		d.fail("missing [Condition.%s.Result_Code] section", variant)
		return v
	}
	sub := &decoder{doc: d.doc, sec: rc, path: d.path + ".Result_Code"}
	rawOp := sub.string(keyOperator)
	if sub.err == nil {
		if strings.EqualFold(rawOp, ResultCodeAny) {
			v.ResultCode = ResultCodeCheck{Any: true}
		} else {
			op, err := ParseOperator(rawOp)
			if err != nil {
				sub.fail("%s: %v (or %q to ignore the result code)", keyOperator, err, ResultCodeAny)
			}
			v.ResultCode = ResultCodeCheck{Op: op, Value: sub.int(keyValue)}
		}
	}
	if sub.err != nil && d.err == nil {
		d.err = sub.err
	}

	if wo := d.doc.Find("Condition", variant, "With_Output"); wo != nil {
		woDec := &decoder{doc: d.doc, sec: wo, path: d.path + ".With_Output"}
		v.OutputAggregation = Aggregation(woDec.option(keyResult, AggregationOptions))
		if woDec.err != nil && d.err == nil {
			d.err = woDec.err
		}
		for _, mSec := range d.doc.NumberedChildren("Condition", variant, "With_Output") {
			mDec := &decoder{doc: d.doc, sec: mSec, path: d.path + ".With_Output." + mSec.Name()}
			m := OutputMatch{Mode: OutputMode(mDec.option(keyOperator, OutputModeOptions))}
			if m.Mode != OutNotEmpty {
				m.Text = mDec.string(keyText)
			}
			if mDec.err != nil {
				if d.err == nil {
					d.err = mDec.err
				}
				continue
			}
			v.Output = append(v.Output, m)
		}
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
