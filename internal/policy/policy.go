// Package policy holds the monitoring policy binding: the association of one
// condition with a target scope, severity, auto-reset behavior, and the
// notification/ticketing/automation plan dispatched on state transitions.
// Bindings are immutable once loaded; a change is a full redefinition.
package policy

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/condition"
)

func configErrf(path, format string, args ...any) *condition.ConfigurationError {
	return &condition.ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Severity classifies the alert raised when a binding activates.
type Severity string

const (
	SevCritical Severity = "Critical"
	SevMajor    Severity = "Major"
	SevModerate Severity = "Moderate"
	SevMinor    Severity = "Minor"
	SevNone     Severity = "None"
)

// SeverityOptions is the candidate list as presented in the raw document.
const SeverityOptions = "Critical / Major / Moderate / Minor / None"

// Priority orders triaging of raised alerts.
type Priority string

const (
	PrioHigh   Priority = "High"
	PrioMedium Priority = "Medium"
	PrioLow    Priority = "Low"
	PrioNone   Priority = "None"
)

// PriorityOptions is the candidate list as presented in the raw document.
const PriorityOptions = "High / Medium / Low / None"

// TargetScope selects which endpoints the binding applies to: a hierarchy
// path plus an optional agent-policy filter within that path.
type TargetScope struct {
	Path        string
	AgentPolicy string
}

// AutoReset controls how an Active binding clears. When Enabled is false the
// remaining fields are ignored entirely, not merely defaulted. Exactly one
// mode applies when enabled: WhenNoLongerMet resets the instant the predicate
// goes false; otherwise ResetInterval clears the binding after a fixed
// interval regardless of continued satisfaction. TriggerAgain re-arms an
// interval reset while the condition is still true and is only offered on the
// device-down and Windows-service variants.
type AutoReset struct {
	Enabled         bool
	WhenNoLongerMet bool
	ResetInterval   condition.Window
	NotifyOnReset   bool
	TriggerAgain    bool
}

// TechnicianMode controls whether assigned technicians are notified in
// addition to the channel list.
type TechnicianMode string

const (
	TechSuppressed TechnicianMode = "Suppressed"
	TechSent       TechnicianMode = "Sent"
)

// TechnicianModeOptions is the candidate list as presented in the raw document.
const TechnicianModeOptions = "Suppressed / Sent"

// TicketMode controls ticketing side effects on activation.
type TicketMode string

const (
	TicketDisabled       TicketMode = "Disabled"
	TicketCreate         TicketMode = "Create"
	TicketCreateAndClose TicketMode = "Create and close"
)

// TicketModeOptions is the candidate list as presented in the raw document.
const TicketModeOptions = "Disabled / Create / Create and close"

// RunAs is the identity an automation executes under.
type RunAs string

const (
	RunAsSystem               RunAs = "System"
	RunAsCurrentUser          RunAs = "Current user"
	RunAsPreferredLocalAdmin  RunAs = "Preferred local admin"
	RunAsPreferredDomainAdmin RunAs = "Preferred domain admin"
)

// RunAsOptions is the candidate list as presented in the raw document.
const RunAsOptions = "System / Current user / Preferred local admin / Preferred domain admin"

// Parameter is one named automation argument. Parameters are passed
// positionally in declared order; the name documents the slot.
type Parameter struct {
	Name  string
	Value string
}

// AutomationRef names a registered automation to run on activation.
type AutomationRef struct {
	Name       string
	RunAs      RunAs
	Parameters []Parameter
}

// Ticketing is the ticket side-effect configuration. Template is required
// whenever Mode is not Disabled.
type Ticketing struct {
	Mode     TicketMode
	Template string
}

// ActionDispatch is the side-effect plan applied on an Inactive to Active
// transition. Channel order is preserved; duplicate channel refs collapse to
// a single delivery. Automations run in declared order, each in its own
// failure domain.
type ActionDispatch struct {
	Channels    []string
	Technicians TechnicianMode
	Ticketing   Ticketing
	Automations []AutomationRef
}

// DedupedChannels returns the channel list with duplicates collapsed to the
// first occurrence, preserving order.
func (a *ActionDispatch) DedupedChannels() []string {
	seen := make(map[string]bool, len(a.Channels))
	var out []string
	for _, ch := range a.Channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}

// Binding is one loaded monitoring policy. The Condition is owned by the
// binding and never shared.
type Binding struct {
	ID        uuid.UUID
	Name      string
	Scope     TargetScope
	Severity  Severity
	Priority  Priority
	AutoReset AutoReset
	Condition *condition.Condition
	Dispatch  ActionDispatch
}

// triggerAgainKinds are the only variants that expose the re-arm flag.
var triggerAgainKinds = map[condition.Kind]bool{
	condition.DeviceDownKind:     true,
	condition.WindowsServiceKind: true,
}

// Validate checks every invariant of the binding, including its condition.
// A binding with errors is never armed.
func (b *Binding) Validate() []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, configErrf("Policy", format, args...))
	}

	if b.Name == "" {
		fail("policy name is required")
	}
	if b.Scope.Path == "" {
		fail("target scope path is required")
	}

	switch b.Severity {
	case SevCritical, SevMajor, SevModerate, SevMinor, SevNone:
	default:
		fail("severity %q is not one of %q", b.Severity, SeverityOptions)
	}
	switch b.Priority {
	case PrioHigh, PrioMedium, PrioLow, PrioNone:
	default:
		fail("priority %q is not one of %q", b.Priority, PriorityOptions)
	}

	if b.Condition == nil {
		fail("a condition is required")
	} else {
		errs = append(errs, b.Condition.Validate()...)
	}

	if b.AutoReset.Enabled {
		if !b.AutoReset.WhenNoLongerMet {
			if b.AutoReset.ResetInterval.IsZero() {
				fail("auto reset requires either When_no_longer_met or a reset interval")
			} else if err := b.AutoReset.ResetInterval.Validate(); err != nil {
				errs = append(errs, configErrf("Policy.Auto_Reset", "%v", err))
			}
		}
		if b.AutoReset.TriggerAgain && b.Condition != nil && !triggerAgainKinds[b.Condition.Kind] {
			fail("Trigger_again_if_condition_is_still_true_after_reset is only available on Device_Down and Windows_Service")
		}
	}

	errs = append(errs, b.Dispatch.validate()...)
	return errs
}

func (a *ActionDispatch) validate() []error {
	var errs []error
	fail := func(path, format string, args ...any) {
		errs = append(errs, configErrf(path, format, args...))
	}

	for i, ch := range a.Channels {
		if ch == "" {
			fail("Policy.Notify", "channel %d is empty", i+1)
		}
	}
	switch a.Technicians {
	case TechSuppressed, TechSent:
	default:
		fail("Policy.Notify", "technician notification %q is not one of %q", a.Technicians, TechnicianModeOptions)
	}

	switch a.Ticketing.Mode {
	case TicketDisabled:
	case TicketCreate, TicketCreateAndClose:
		if a.Ticketing.Template == "" {
			fail("Policy.Ticketing", "template is required when mode is %q", a.Ticketing.Mode)
		}
	default:
		fail("Policy.Ticketing", "mode %q is not one of %q", a.Ticketing.Mode, TicketModeOptions)
	}

	for i, auto := range a.Automations {
		path := "Policy.Automation." + strconv.Itoa(i+1)
		if auto.Name == "" {
			fail(path, "automation name is required")
		}
		switch auto.RunAs {
		case RunAsSystem, RunAsCurrentUser, RunAsPreferredLocalAdmin, RunAsPreferredDomainAdmin:
		default:
			fail(path, "run-as %q is not one of %q", auto.RunAs, RunAsOptions)
		}
	}
	return errs
}
