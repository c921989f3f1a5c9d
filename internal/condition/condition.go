package condition

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PresenceState is the trigger state for software/process presence variants.
type PresenceState string

const (
	StateExists       PresenceState = "Exists"
	StateDoesNotExist PresenceState = "Does not exist"
)

// PresenceOptions is the candidate list as presented in the raw document.
const PresenceOptions = "Exists / Does not exist"

// ServiceState is the trigger state for the Windows service variant.
type ServiceState string

const (
	ServiceUp   ServiceState = "Up"
	ServiceDown ServiceState = "Down"
)

// ServiceStateOptions is the candidate list as presented in the raw document.
const ServiceStateOptions = "Up / Down"

// AVStatus is an antivirus health status.
type AVStatus string

const (
	AVNotInstalled AVStatus = "Not installed"
	AVDisabled     AVStatus = "Disabled"
	AVOutOfDate    AVStatus = "Out of date"
	AVUnhealthy    AVStatus = "Unhealthy"
)

// AVStatusOptions is the candidate list as presented in the raw document.
const AVStatusOptions = "Not installed / Disabled / Out of date / Unhealthy"

// BitlockerState is the trigger state for the Bitlocker variant.
type BitlockerState string

const (
	BitlockerEnabled  BitlockerState = "Enabled"
	BitlockerDisabled BitlockerState = "Disabled"
)

// BitlockerOptions is the candidate list as presented in the raw document.
const BitlockerOptions = "Enabled / Disabled"

// RAIDSeverity selects which fault levels a RAID component reacts to.
type RAIDSeverity string

const (
	RAIDIgnore                 RAIDSeverity = "Ignore"
	RAIDCriticalOnly           RAIDSeverity = "Critical only"
	RAIDCriticalAndNonCritical RAIDSeverity = "Critical and non-critical"
)

// RAIDSeverityOptions is the candidate list as presented in the raw document.
const RAIDSeverityOptions = "Ignore / Critical only / Critical and non-critical"

// RAIDFault is an observed fault level on one RAID component.
type RAIDFault int

const (
	FaultNone RAIDFault = iota
	FaultNonCritical
	FaultCritical
)

// RAIDObservation is the per-component fault snapshot sampled from the
// controller.
type RAIDObservation struct {
	Controller     RAIDFault
	VirtualDrives  RAIDFault
	PhysicalDrives RAIDFault
	BatteryBackup  RAIDFault
}

// ProcessMetric selects which resource a ProcessResource variant watches.
type ProcessMetric string

const (
	ProcCPU    ProcessMetric = "CPU"
	ProcMemory ProcessMetric = "Memory"
)

// ProcessMetricOptions is the candidate list as presented in the raw document.
const ProcessMetricOptions = "CPU / Memory"

// TextFilter is one Contains/Does-not-contain filter over event text.
type TextFilter struct {
	Mode Comparator // Contains or ContainsNone
	Text string
}

// OutputMode is a script output matching mode.
type OutputMode string

const (
	OutContains    OutputMode = "Contains"
	OutNotEmpty    OutputMode = "Not empty"
	OutNotContains OutputMode = "Does not contain"
	OutStartsWith  OutputMode = "Starts with"
	OutEndsWith    OutputMode = "Ends with"
	OutRegexp      OutputMode = "Regular expression"
)

// OutputModeOptions is the candidate list as presented in the raw document.
const OutputModeOptions = "Contains / Not empty / Does not contain / Starts with / Ends with / Regular expression"

// OutputMatch is one script-output matcher.
type OutputMatch struct {
	Mode OutputMode
	Text string
}

// ResultCodeAny is the "any" operator on a script result code, meaning the
// exit code is ignored entirely.
const ResultCodeAny = "any"

// ResultCodeCheck compares the script exit code. Any=true ignores the code.
type ResultCodeCheck struct {
	Any   bool
	Op    Operator
	Value int
}

// Variant payloads. Each variant owns a disjoint parameter record; the
// Condition wrapper below enforces that exactly one is populated.

type AntivirusHealth struct {
	Statuses []AVStatus
}

type BatteryMonitoring struct {
	Op        Operator
	Threshold Threshold // percent
}

type BitlockerStatus struct {
	Status BitlockerState
}

type CPU struct {
	Op        Operator
	Threshold Threshold // percent
	Duration  Window    // fixed 5/15/30/60 minutes
}

type CriticalEvents struct {
	TriggerCount int
	Duration     Window
}

type CustomFields struct {
	Clauses ClauseGroup
}

type DeviceDown struct {
	Duration Window
}

type DiskActiveTime struct {
	Drive     string
	Op        Operator
	Threshold Threshold // percent
	Duration  Window    // fixed 5/15/30/60 minutes
}

type DiskFreeSpace struct {
	Drive     string
	Op        Operator  // LT / LTE
	Threshold Threshold // bytes
}

type DiskTransferRate struct {
	Drive     string
	Op        Operator
	Threshold Threshold // rate
	Duration  Window    // fixed 5/15/30/60 minutes
}

type DiskUsage struct {
	Drive     string
	Op        Operator
	Threshold Threshold // percent or bytes (Unit union)
	Duration  Window
}

type Memory struct {
	Op        Operator
	Threshold Threshold // percent or bytes (Unit union)
	Duration  Window    // fixed 5/15/30/60 minutes
}

type NetworkUtilization struct {
	Op        Operator
	Threshold Threshold // rate
	Duration  Window    // fixed 5/15/30/60 minutes
}

type OSPatchCVSSScore struct {
	Op    Operator // GT / GTE only
	Score float64  // 0..10
}

type PatchLastInstalled struct {
	Op   Operator // GT / GTE
	Days int
}

type Process struct {
	Name              string
	State             PresenceState
	SystemUptimeDelay Window // suppressed until host uptime exceeds this
}

type ProcessResource struct {
	Name      string
	Metric    ProcessMetric
	Op        Operator
	Threshold Threshold
	Duration  Window // fixed 5/15/30/60 minutes
}

type RAIDHealthStatus struct {
	Controller     RAIDSeverity
	VirtualDrives  RAIDSeverity
	PhysicalDrives RAIDSeverity
	BatteryBackup  RAIDSeverity
}

type RebootPending struct {
	PendingFor Window
}

type ScriptResult struct {
	Script            string
	ScriptType        string
	RunEvery          Window
	Timeout           Window
	ResultCode        ResultCodeCheck
	OutputAggregation Aggregation
	Output            []OutputMatch
	ErrorNotification bool
}

type Software struct {
	Name  string
	State PresenceState
}

type SystemUptime struct {
	Op       Operator
	Duration Window // uptime compared against this
}

type WindowsEvent struct {
	Source       string
	EventIDs     []int
	Filters      []TextFilter
	Result       Aggregation
	TriggerCount int
	Duration     Window
}

type WindowsService struct {
	Name              string
	State             ServiceState
	SystemUptimeDelay Window
}

type WindowsSMARTStatus struct{}

// Condition is the tagged union over all variants. Exactly one payload
// pointer matching Kind is non-nil.
type Condition struct {
	Kind Kind

	AntivirusHealth    *AntivirusHealth
	BatteryMonitoring  *BatteryMonitoring
	BitlockerStatus    *BitlockerStatus
	CPU                *CPU
	CriticalEvents     *CriticalEvents
	CustomFields       *CustomFields
	DeviceDown         *DeviceDown
	DiskActiveTime     *DiskActiveTime
	DiskFreeSpace      *DiskFreeSpace
	DiskTransferRate   *DiskTransferRate
	DiskUsage          *DiskUsage
	Memory             *Memory
	NetworkUtilization *NetworkUtilization
	OSPatchCVSSScore   *OSPatchCVSSScore
	PatchLastInstalled *PatchLastInstalled
	Process            *Process
	ProcessResource    *ProcessResource
	RAIDHealthStatus   *RAIDHealthStatus
	RebootPending      *RebootPending
	ScriptResult       *ScriptResult
	Software           *Software
	SystemUptime       *SystemUptime
	WindowsEvent       *WindowsEvent
	WindowsService     *WindowsService
	WindowsSMARTStatus *WindowsSMARTStatus
}

// populated returns the list of kinds whose payload is non-nil.
func (c *Condition) populated() []Kind {
	var out []Kind
	add := func(k Kind, set bool) {
		if set {
			out = append(out, k)
		}
	}
	add(AntivirusHealthKind, c.AntivirusHealth != nil)
	add(BatteryMonitoringKind, c.BatteryMonitoring != nil)
	add(BitlockerStatusKind, c.BitlockerStatus != nil)
	add(CPUKind, c.CPU != nil)
	add(CriticalEventsKind, c.CriticalEvents != nil)
	add(CustomFieldsKind, c.CustomFields != nil)
	add(DeviceDownKind, c.DeviceDown != nil)
	add(DiskActiveTimeKind, c.DiskActiveTime != nil)
	add(DiskFreeSpaceKind, c.DiskFreeSpace != nil)
	add(DiskTransferRateKind, c.DiskTransferRate != nil)
	add(DiskUsageKind, c.DiskUsage != nil)
	add(MemoryKind, c.Memory != nil)
	add(NetworkUtilizationKind, c.NetworkUtilization != nil)
	add(OSPatchCVSSScoreKind, c.OSPatchCVSSScore != nil)
	add(PatchLastInstalledKind, c.PatchLastInstalled != nil)
	add(ProcessKind, c.Process != nil)
	add(ProcessResourceKind, c.ProcessResource != nil)
	add(RAIDHealthStatusKind, c.RAIDHealthStatus != nil)
	add(RebootPendingKind, c.RebootPending != nil)
	add(ScriptResultKind, c.ScriptResult != nil)
	add(SoftwareKind, c.Software != nil)
	add(SystemUptimeKind, c.SystemUptime != nil)
	add(WindowsEventKind, c.WindowsEvent != nil)
	add(WindowsServiceKind, c.WindowsService != nil)
	add(WindowsSMARTStatusKind, c.WindowsSMARTStatus != nil)
	return out
}

// GateWindow returns the continuous-truth duration window for duration-gated
// variants, or a zero Window for variants that are instantaneous or consume
// their window differently (event counting, script schedules).
func (c *Condition) GateWindow() Window {
	switch c.Kind {
	case CPUKind:
		return c.CPU.Duration
	case DiskActiveTimeKind:
		return c.DiskActiveTime.Duration
	case DiskTransferRateKind:
		return c.DiskTransferRate.Duration
	case DiskUsageKind:
		return c.DiskUsage.Duration
	case MemoryKind:
		return c.Memory.Duration
	case NetworkUtilizationKind:
		return c.NetworkUtilization.Duration
	case ProcessResourceKind:
		return c.ProcessResource.Duration
	case DeviceDownKind:
		return c.DeviceDown.Duration
	case RebootPendingKind:
		return c.RebootPending.PendingFor
	}
	return Window{}
}

// Sample is one observation of the monitored source for a condition. Which
// fields are meaningful depends on the kind: Value for numeric variants (in
// the threshold's normalized unit), State for presence/status variants,
// Count for event variants, RAID for the RAID variant, Fields for custom
// field matching. Uptime carries the host uptime for variants gated on
// SystemUptimeDelay.
type Sample struct {
	At     time.Time
	Value  float64
	State  string
	Count  int
	Uptime time.Duration
	RAID   *RAIDObservation
	Fields FieldLookup
}

// Satisfied evaluates the instantaneous predicate of the condition against a
// sample. Duration gating is applied by the evaluation engine on top of this
// result. ScriptResultCondition is not sampled; its outcome is evaluated via
// EvaluateScript.
func (c *Condition) Satisfied(s Sample) (bool, error) {
	switch c.Kind {
	case AntivirusHealthKind:
		for _, st := range c.AntivirusHealth.Statuses {
			if string(st) == s.State {
				return true, nil
			}
		}
		return false, nil

	case BatteryMonitoringKind:
		v := c.BatteryMonitoring
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case BitlockerStatusKind:
		return s.State == string(c.BitlockerStatus.Status), nil

	case CPUKind:
		v := c.CPU
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case CriticalEventsKind:
		return s.Count >= c.CriticalEvents.TriggerCount, nil

	case CustomFieldsKind:
		if s.Fields == nil {
			return false, nil
		}
		return c.CustomFields.Clauses.Evaluate(s.Fields), nil

	case DeviceDownKind:
		return s.State == string(ServiceDown), nil

	case DiskActiveTimeKind:
		v := c.DiskActiveTime
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case DiskFreeSpaceKind:
		v := c.DiskFreeSpace
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case DiskTransferRateKind:
		v := c.DiskTransferRate
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case DiskUsageKind:
		v := c.DiskUsage
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case MemoryKind:
		v := c.Memory
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case NetworkUtilizationKind:
		v := c.NetworkUtilization
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case OSPatchCVSSScoreKind:
		v := c.OSPatchCVSSScore
		return v.Op.Compare(s.Value, v.Score), nil

	case PatchLastInstalledKind:
		v := c.PatchLastInstalled
		return v.Op.Compare(s.Value, float64(v.Days)), nil

	case ProcessKind:
		v := c.Process
		if !v.SystemUptimeDelay.IsZero() && s.Uptime < v.SystemUptimeDelay.Duration() {
			return false, nil
		}
		return s.State == string(v.State), nil

	case ProcessResourceKind:
		v := c.ProcessResource
		return v.Op.Compare(s.Value, v.Threshold.Normalized()), nil

	case RAIDHealthStatusKind:
		if s.RAID == nil {
			return false, nil
		}
		return c.RAIDHealthStatus.satisfied(*s.RAID), nil

	case RebootPendingKind:
		return s.State == "Pending", nil

	case SoftwareKind:
		return s.State == string(c.Software.State), nil

	case SystemUptimeKind:
		v := c.SystemUptime
		return v.Op.Compare(float64(s.Uptime), float64(v.Duration.Duration())), nil

	case WindowsEventKind:
		return s.Count >= c.WindowsEvent.TriggerCount, nil

	case WindowsServiceKind:
		v := c.WindowsService
		if !v.SystemUptimeDelay.IsZero() && s.Uptime < v.SystemUptimeDelay.Duration() {
			return false, nil
		}
		return s.State == string(v.State), nil

	case WindowsSMARTStatusKind:
		return s.State == "Degraded", nil

	case ScriptResultKind:
		return false, fmt.Errorf("script result conditions are evaluated from script outcomes, not samples")
	}
	return false, fmt.Errorf("condition kind %q has no predicate", c.Kind)
}

// satisfied is the OR across the four RAID components, each against its own
// configured severity.
func (r *RAIDHealthStatus) satisfied(obs RAIDObservation) bool {
	return componentFaulted(r.Controller, obs.Controller) ||
		componentFaulted(r.VirtualDrives, obs.VirtualDrives) ||
		componentFaulted(r.PhysicalDrives, obs.PhysicalDrives) ||
		componentFaulted(r.BatteryBackup, obs.BatteryBackup)
}

func componentFaulted(sev RAIDSeverity, fault RAIDFault) bool {
	switch sev {
	case RAIDCriticalOnly:
		return fault == FaultCritical
	case RAIDCriticalAndNonCritical:
		return fault == FaultCritical || fault == FaultNonCritical
	}
	return false
}

// MatchesEvent applies the text filters of a Windows event variant to one
// event message under the configured All/Any aggregation. Used by event
// providers when counting qualifying occurrences.
func (w *WindowsEvent) MatchesEvent(eventID int, message string) bool {
	if len(w.EventIDs) > 0 {
		found := false
		for _, id := range w.EventIDs {
			if id == eventID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(w.Filters) == 0 {
		return true
	}
	for _, f := range w.Filters {
		hit := strings.Contains(message, f.Text)
		if f.Mode == ContainsNone {
			hit = !hit
		}
		if w.Result == All && !hit {
			return false
		}
		if w.Result == Any && hit {
			return true
		}
	}
	return w.Result == All
}

// ScriptOutcome is the result of one scheduled run of a script result
// condition's script. Failed covers launch failure and timeout; those route
// to the error-notification channel independent of result matching.
type ScriptOutcome struct {
	Failed   bool
	TimedOut bool
	ExitCode int
	Output   string
}

// EvaluateScript applies the result-code comparison and output matching to a
// completed script run. Execution failure is not a match: it is reported
// through the separate Script_error_notification channel and short-circuits
// result matching entirely.
func (sc *ScriptResult) EvaluateScript(out ScriptOutcome) (bool, error) {
	if out.Failed {
		return false, nil
	}

	if !sc.ResultCode.Any {
		if !sc.ResultCode.Op.Compare(float64(out.ExitCode), float64(sc.ResultCode.Value)) {
			return false, nil
		}
	}

	if len(sc.Output) == 0 {
		return true, nil
	}

	mode := sc.OutputAggregation
	if mode == "" {
		mode = All
	}
	for _, m := range sc.Output {
		hit, err := m.matches(out.Output)
		if err != nil {
			return false, err
		}
		if mode == All && !hit {
			return false, nil
		}
		if mode == Any && hit {
			return true, nil
		}
	}
	return mode == All, nil
}

func (m OutputMatch) matches(output string) (bool, error) {
	switch m.Mode {
	case OutContains:
		return strings.Contains(output, m.Text), nil
	case OutNotEmpty:
		return strings.TrimSpace(output) != "", nil
	case OutNotContains:
		return !strings.Contains(output, m.Text), nil
	case OutStartsWith:
		return strings.HasPrefix(output, m.Text), nil
	case OutEndsWith:
		return strings.HasSuffix(output, m.Text), nil
	case OutRegexp:
		re, err := regexp.Compile(m.Text)
		if err != nil {
			return false, fmt.Errorf("output pattern %q: %w", m.Text, err)
		}
		return re.MatchString(output), nil
	}
	return false, fmt.Errorf("unknown output match mode %q", m.Mode)
}
