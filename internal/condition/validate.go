package condition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ConfigurationError is a schema violation detected at load time. A binding
// whose condition carries configuration errors never activates.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error at %s: %s", e.Path, e.Reason)
}

func configErrf(path, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// operator subsets for variants that do not expose all six operators.
var (
	gtOnly = map[Operator]bool{OpGT: true, OpGTE: true}
	ltOnly = map[Operator]bool{OpLT: true, OpLTE: true}
	allOps = map[Operator]bool{OpGT: true, OpGTE: true, OpLT: true, OpLTE: true, OpEQ: true, OpNEQ: true}
)

func checkOp(errs []error, path string, op Operator, allowed map[Operator]bool) []error {
	if _, err := ParseOperator(string(op)); err != nil {
		return append(errs, configErrf(path, "%v", err))
	}
	if !allowed[op] {
		return append(errs, configErrf(path, "operator %q is not available on this variant", op))
	}
	return errs
}

func checkThreshold(errs []error, path string, t Threshold, kinds ...ThresholdKind) []error {
	if err := t.validate(); err != nil {
		return append(errs, configErrf(path, "%v", err))
	}
	for _, k := range kinds {
		if t.Kind == k {
			return errs
		}
	}
	return append(errs, configErrf(path, "threshold kind %q is not allowed here (unit-family mismatch is a configuration error, not a runtime coercion)", t.Kind))
}

func checkWindow(errs []error, path string, w Window, fixed bool) []error {
	if err := w.Validate(); err != nil {
		return append(errs, configErrf(path, "%v", err))
	}
	if fixed {
		if err := w.validateFixed(); err != nil {
			errs = append(errs, configErrf(path, "%v", err))
		}
	}
	return errs
}

// Validate checks every invariant of the condition and returns all errors
// found. An empty result means the condition may be armed.
func (c *Condition) Validate() []error {
	var errs []error

	set := c.populated()
	if len(set) == 0 {
		return []error{configErrf(string(c.Kind), "no variant payload populated")}
	}
	if len(set) > 1 {
		return []error{configErrf(string(c.Kind), "multiple variant payloads populated: %v", set)}
	}
	if set[0] != c.Kind {
		return []error{configErrf(string(c.Kind), "kind is %q but the populated payload is %q", c.Kind, set[0])}
	}

	path := c.Kind.Section()

	switch c.Kind {
	case AntivirusHealthKind:
		if len(c.AntivirusHealth.Statuses) == 0 {
			errs = append(errs, configErrf(path, "at least one antivirus status is required"))
		}
		for _, st := range c.AntivirusHealth.Statuses {
			switch st {
			case AVNotInstalled, AVDisabled, AVOutOfDate, AVUnhealthy:
			default:
				errs = append(errs, configErrf(path, "status %q is not one of %q", st, AVStatusOptions))
			}
		}

	case BatteryMonitoringKind:
		v := c.BatteryMonitoring
		errs = checkOp(errs, path, v.Op, ltOnly)
		errs = checkThreshold(errs, path, v.Threshold, KindPercent)

	case BitlockerStatusKind:
		switch c.BitlockerStatus.Status {
		case BitlockerEnabled, BitlockerDisabled:
		default:
			errs = append(errs, configErrf(path, "status %q is not one of %q", c.BitlockerStatus.Status, BitlockerOptions))
		}

	case CPUKind:
		v := c.CPU
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindPercent)
		errs = checkWindow(errs, path, v.Duration, true)

	case CriticalEventsKind:
		v := c.CriticalEvents
		if v.TriggerCount < 1 {
			errs = append(errs, configErrf(path, "If_the_events_trigger must be at least 1, got %d", v.TriggerCount))
		}
		errs = checkWindow(errs, path, v.Duration, false)

	case CustomFieldsKind:
		errs = append(errs, validateClauseGroup(path, c.CustomFields.Clauses)...)

	case DeviceDownKind:
		errs = checkWindow(errs, path, c.DeviceDown.Duration, false)

	case DiskActiveTimeKind:
		v := c.DiskActiveTime
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindPercent)
		errs = checkWindow(errs, path, v.Duration, true)

	case DiskFreeSpaceKind:
		v := c.DiskFreeSpace
		errs = checkOp(errs, path, v.Op, ltOnly)
		errs = checkThreshold(errs, path, v.Threshold, KindBytes)

	case DiskTransferRateKind:
		v := c.DiskTransferRate
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindRate)
		errs = checkWindow(errs, path, v.Duration, true)

	case DiskUsageKind:
		v := c.DiskUsage
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindPercent, KindBytes)
		errs = checkWindow(errs, path, v.Duration, false)

	case MemoryKind:
		v := c.Memory
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindPercent, KindBytes)
		errs = checkWindow(errs, path, v.Duration, true)

	case NetworkUtilizationKind:
		v := c.NetworkUtilization
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkThreshold(errs, path, v.Threshold, KindRate)
		errs = checkWindow(errs, path, v.Duration, true)

	case OSPatchCVSSScoreKind:
		v := c.OSPatchCVSSScore
		errs = checkOp(errs, path, v.Op, gtOnly)
		if v.Score < 0 || v.Score > 10 {
			errs = append(errs, configErrf(path, "CVSS score %g is outside 0..10", v.Score))
		}

	case PatchLastInstalledKind:
		v := c.PatchLastInstalled
		errs = checkOp(errs, path, v.Op, gtOnly)
		if v.Days < 1 {
			errs = append(errs, configErrf(path, "days %d must be at least 1", v.Days))
		}

	case ProcessKind:
		v := c.Process
		if v.Name == "" {
			errs = append(errs, configErrf(path, "process name is required"))
		}
		errs = append(errs, validatePresence(path, v.State)...)
		if !v.SystemUptimeDelay.IsZero() {
			errs = checkWindow(errs, path, v.SystemUptimeDelay, false)
		}

	case ProcessResourceKind:
		v := c.ProcessResource
		if v.Name == "" {
			errs = append(errs, configErrf(path, "process name is required"))
		}
		switch v.Metric {
		case ProcCPU:
			errs = checkThreshold(errs, path, v.Threshold, KindPercent)
		case ProcMemory:
			errs = checkThreshold(errs, path, v.Threshold, KindPercent, KindBytes)
		default:
			errs = append(errs, configErrf(path, "resource %q is not one of %q", v.Metric, ProcessMetricOptions))
		}
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkWindow(errs, path, v.Duration, true)

	case RAIDHealthStatusKind:
		v := c.RAIDHealthStatus
		components := []struct {
			name string
			sev  RAIDSeverity
		}{
			{"Controller", v.Controller},
			{"Virtual_Drives", v.VirtualDrives},
			{"Physical_Drives", v.PhysicalDrives},
			{"Battery_Backup", v.BatteryBackup},
		}
		allIgnored := true
		for _, comp := range components {
			switch comp.sev {
			case RAIDIgnore:
			case RAIDCriticalOnly, RAIDCriticalAndNonCritical:
				allIgnored = false
			default:
				errs = append(errs, configErrf(path, "%s severity %q is not one of %q", comp.name, comp.sev, RAIDSeverityOptions))
			}
		}
		if allIgnored {
			errs = append(errs, configErrf(path, "all four components are ignored; the condition can never trigger"))
		}

	case RebootPendingKind:
		errs = checkWindow(errs, path, c.RebootPending.PendingFor, false)

	case ScriptResultKind:
		errs = append(errs, validateScriptResult(path, c.ScriptResult)...)

	case SoftwareKind:
		v := c.Software
		if v.Name == "" {
			errs = append(errs, configErrf(path, "software name is required"))
		}
		errs = append(errs, validatePresence(path, v.State)...)

	case SystemUptimeKind:
		v := c.SystemUptime
		errs = checkOp(errs, path, v.Op, allOps)
		errs = checkWindow(errs, path, v.Duration, false)

	case WindowsEventKind:
		v := c.WindowsEvent
		if v.Source == "" {
			errs = append(errs, configErrf(path, "event source is required"))
		}
		if v.TriggerCount < 1 {
			errs = append(errs, configErrf(path, "If_the_events_trigger must be at least 1, got %d", v.TriggerCount))
		}
		switch v.Result {
		case All, Any:
		default:
			errs = append(errs, configErrf(path, "result aggregation %q is not one of %q", v.Result, AggregationOptions))
		}
		for i, f := range v.Filters {
			if f.Mode != Contains && f.Mode != ContainsNone {
				errs = append(errs, configErrf(path, "filter %d operator %q is not one of %q", i+1, f.Mode, "Contains / Contains none"))
			}
			if f.Text == "" {
				errs = append(errs, configErrf(path, "filter %d text is empty", i+1))
			}
		}
		errs = checkWindow(errs, path, v.Duration, false)

	case WindowsServiceKind:
		v := c.WindowsService
		if v.Name == "" {
			errs = append(errs, configErrf(path, "service name is required"))
		}
		switch v.State {
		case ServiceUp, ServiceDown:
		default:
			errs = append(errs, configErrf(path, "state %q is not one of %q", v.State, ServiceStateOptions))
		}
		if !v.SystemUptimeDelay.IsZero() {
			errs = checkWindow(errs, path, v.SystemUptimeDelay, false)
		}

	case WindowsSMARTStatusKind:
		// No parameters.

	default:
		errs = append(errs, configErrf(string(c.Kind), "unknown condition kind"))
	}

	return errs
}

func validatePresence(path string, st PresenceState) []error {
	switch st {
	case StateExists, StateDoesNotExist:
		return nil
	}
	return []error{configErrf(path, "state %q is not one of %q", st, PresenceOptions)}
}

func validateClauseGroup(path string, g ClauseGroup) []error {
	var errs []error

	switch g.Mode {
	case All, Any:
	default:
		errs = append(errs, configErrf(path, "clause aggregation %q is not one of %q", g.Mode, AggregationOptions))
	}

	// An empty group is a configuration error, never silently true or false.
	if len(g.Clauses) == 0 {
		errs = append(errs, configErrf(path, "clause group must contain at least one clause"))
		return errs
	}

	for i, cl := range g.Clauses {
		clausePath := fmt.Sprintf("%s.Clause.%d", path, i+1)
		if cl.Field == uuid.Nil {
			errs = append(errs, configErrf(clausePath, "field GUID is required"))
		}
		options := comparatorOptionsFor(cl.Type)
		if options == "" {
			errs = append(errs, configErrf(clausePath, "field type %q is not one of %q", cl.Type, FieldTypeOptions))
			continue
		}
		allowed := false
		for _, opt := range SplitComparators(options) {
			if cl.Comparator == opt {
				allowed = true
				break
			}
		}
		if !allowed {
			errs = append(errs, configErrf(clausePath, "comparator %q is not valid for %s fields (allowed: %s)", cl.Comparator, cl.Type, options))
		}
	}
	return errs
}

// SplitComparators splits a slash-delimited comparator candidate list.
func SplitComparators(list string) []Comparator {
	parts := strings.Split(list, " / ")
	out := make([]Comparator, 0, len(parts))
	for _, p := range parts {
		out = append(out, Comparator(p))
	}
	return out
}

func validateScriptResult(path string, v *ScriptResult) []error {
	var errs []error

	if v.Script == "" {
		errs = append(errs, configErrf(path, "script reference is required"))
	}
	errs = checkWindow(errs, path, v.RunEvery, false)
	errs = checkWindow(errs, path, v.Timeout, false)

	if !v.ResultCode.Any {
		errs = checkOp(errs, path+".Result_Code", v.ResultCode.Op, allOps)
	}

	if len(v.Output) > 0 {
		switch v.OutputAggregation {
		case All, Any, "":
		default:
			errs = append(errs, configErrf(path, "output aggregation %q is not one of %q", v.OutputAggregation, AggregationOptions))
		}
	}
	for i, m := range v.Output {
		matchPath := fmt.Sprintf("%s.With_Output.%d", path, i+1)
		switch m.Mode {
		case OutContains, OutNotContains, OutStartsWith, OutEndsWith:
			if m.Text == "" {
				errs = append(errs, configErrf(matchPath, "match text is empty"))
			}
		case OutNotEmpty:
		case OutRegexp:
			if _, err := regexp.Compile(m.Text); err != nil {
				errs = append(errs, configErrf(matchPath, "invalid pattern: %v", err))
			}
		default:
			errs = append(errs, configErrf(matchPath, "mode %q is not one of %q", m.Mode, OutputModeOptions))
		}
	}
	return errs
}
