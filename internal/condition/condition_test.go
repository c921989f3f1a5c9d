package condition

import (
	"testing"
	"time"
)

func TestRAIDHealthORAcrossComponents(t *testing.T) {
	cond := &Condition{
		Kind: RAIDHealthStatusKind,
		RAIDHealthStatus: &RAIDHealthStatus{
			Controller:     RAIDCriticalOnly,
			VirtualDrives:  RAIDIgnore,
			PhysicalDrives: RAIDCriticalAndNonCritical,
			BatteryBackup:  RAIDIgnore,
		},
	}

	// Controller has no critical fault, physical drives carry a non-critical
	// fault: overall satisfied via the physical drives component.
	ok, err := cond.Satisfied(Sample{RAID: &RAIDObservation{
		Controller:     FaultNone,
		PhysicalDrives: FaultNonCritical,
	}})
	if err != nil {
		t.Fatalf("Satisfied: %v", err)
	}
	if !ok {
		t.Fatal("non-critical physical drive fault should satisfy CriticalAndNonCritical")
	}

	// A non-critical controller fault alone is below CriticalOnly.
	ok, err = cond.Satisfied(Sample{RAID: &RAIDObservation{
		Controller: FaultNonCritical,
	}})
	if err != nil {
		t.Fatalf("Satisfied: %v", err)
	}
	if ok {
		t.Fatal("CriticalOnly must not react to a non-critical fault")
	}

	// Ignored components never satisfy, even on critical faults.
	ok, _ = cond.Satisfied(Sample{RAID: &RAIDObservation{
		VirtualDrives: FaultCritical,
	}})
	if ok {
		t.Fatal("ignored component must not satisfy the condition")
	}
}

func TestPresenceVariantsSuppressedDuringBoot(t *testing.T) {
	cond := &Condition{
		Kind: WindowsServiceKind,
		WindowsService: &WindowsService{
			Name:              "Spooler",
			State:             ServiceDown,
			SystemUptimeDelay: Window{Value: 10, Unit: Minutes},
		},
	}

	down := Sample{State: "Down", Uptime: 5 * time.Minute}
	if ok, _ := cond.Satisfied(down); ok {
		t.Fatal("condition must be suppressed until uptime exceeds the delay")
	}

	down.Uptime = 11 * time.Minute
	if ok, _ := cond.Satisfied(down); !ok {
		t.Fatal("condition should fire once the uptime delay has passed")
	}

	up := Sample{State: "Up", Uptime: 11 * time.Minute}
	if ok, _ := cond.Satisfied(up); ok {
		t.Fatal("service Up must not satisfy a Down trigger")
	}
}

func TestSoftwarePresence(t *testing.T) {
	cond := &Condition{
		Kind:     SoftwareKind,
		Software: &Software{Name: "7-Zip", State: StateDoesNotExist},
	}

	if ok, _ := cond.Satisfied(Sample{State: "Does not exist"}); !ok {
		t.Fatal("absent software should satisfy a DoesNotExist trigger")
	}
	if ok, _ := cond.Satisfied(Sample{State: "Exists"}); ok {
		t.Fatal("present software must not satisfy a DoesNotExist trigger")
	}
}

func TestSystemUptimeComparison(t *testing.T) {
	cond := &Condition{
		Kind:         SystemUptimeKind,
		SystemUptime: &SystemUptime{Op: OpGT, Duration: Window{Value: 30, Unit: Days}},
	}

	if ok, _ := cond.Satisfied(Sample{Uptime: 31 * 24 * time.Hour}); !ok {
		t.Fatal("31 days uptime should exceed a 30 day threshold")
	}
	if ok, _ := cond.Satisfied(Sample{Uptime: 29 * 24 * time.Hour}); ok {
		t.Fatal("29 days uptime must not exceed a 30 day threshold")
	}
}

func TestWindowsEventFilterAggregation(t *testing.T) {
	ev := &WindowsEvent{
		Source:   "Application",
		EventIDs: []int{1000, 1001},
		Filters: []TextFilter{
			{Mode: Contains, Text: "fatal"},
			{Mode: ContainsNone, Text: "recovered"},
		},
		Result: All,
	}

	if !ev.MatchesEvent(1000, "fatal crash in module X") {
		t.Fatal("event matching all filters should qualify")
	}
	if ev.MatchesEvent(1000, "fatal crash, recovered automatically") {
		t.Fatal("ALL aggregation should reject when one filter fails")
	}
	if ev.MatchesEvent(2000, "fatal crash") {
		t.Fatal("event id outside the configured set should not qualify")
	}

	ev.Result = Any
	if !ev.MatchesEvent(1001, "fatal crash, recovered automatically") {
		t.Fatal("ANY aggregation should accept when one filter matches")
	}
}

func TestEventCountThreshold(t *testing.T) {
	cond := &Condition{
		Kind: WindowsEventKind,
		WindowsEvent: &WindowsEvent{
			Source:       "System",
			Result:       Any,
			TriggerCount: 5,
			Duration:     Window{Value: 60, Unit: Minutes},
		},
	}

	if ok, _ := cond.Satisfied(Sample{Count: 4}); ok {
		t.Fatal("4 occurrences must not meet a trigger count of 5")
	}
	if ok, _ := cond.Satisfied(Sample{Count: 5}); !ok {
		t.Fatal("5 occurrences should meet a trigger count of 5")
	}
}

func TestScriptResultEvaluation(t *testing.T) {
	sc := &ScriptResult{
		Script:     "check_disk.ps1",
		RunEvery:   Window{Value: 30, Unit: Minutes},
		Timeout:    Window{Value: 2, Unit: Minutes},
		ResultCode: ResultCodeCheck{Op: OpEQ, Value: 1},
		Output: []OutputMatch{
			{Mode: OutContains, Text: "DEGRADED"},
		},
		OutputAggregation: All,
	}

	ok, err := sc.EvaluateScript(ScriptOutcome{ExitCode: 1, Output: "status: DEGRADED"})
	if err != nil {
		t.Fatalf("EvaluateScript: %v", err)
	}
	if !ok {
		t.Fatal("matching exit code and output should satisfy")
	}

	if ok, _ := sc.EvaluateScript(ScriptOutcome{ExitCode: 0, Output: "status: DEGRADED"}); ok {
		t.Fatal("non-matching exit code must not satisfy")
	}
	if ok, _ := sc.EvaluateScript(ScriptOutcome{ExitCode: 1, Output: "status: OK"}); ok {
		t.Fatal("non-matching output must not satisfy")
	}
}

func TestScriptResultAnyIgnoresExitCode(t *testing.T) {
	sc := &ScriptResult{
		ResultCode: ResultCodeCheck{Any: true},
		Output: []OutputMatch{
			{Mode: OutRegexp, Text: `(?i)error\s+\d+`},
		},
	}

	if ok, _ := sc.EvaluateScript(ScriptOutcome{ExitCode: 42, Output: "Error 17 detected"}); !ok {
		t.Fatal("any-operator should ignore the exit code")
	}
}

func TestScriptFailureShortCircuitsMatching(t *testing.T) {
	sc := &ScriptResult{
		ResultCode: ResultCodeCheck{Any: true},
		Output:     []OutputMatch{{Mode: OutNotEmpty}},
	}

	// Timed-out or failed runs never count as a match; they are routed to
	// the separate error-notification channel by the engine.
	if ok, _ := sc.EvaluateScript(ScriptOutcome{Failed: true, TimedOut: true, Output: "partial"}); ok {
		t.Fatal("a failed run must not satisfy the condition")
	}
}

func TestOutputMatchModes(t *testing.T) {
	cases := []struct {
		mode   OutputMode
		text   string
		output string
		want   bool
	}{
		{OutContains, "OK", "all OK here", true},
		{OutNotContains, "OK", "all good", true},
		{OutNotContains, "OK", "all OK", false},
		{OutStartsWith, "status:", "status: fine", true},
		{OutEndsWith, "done", "work done", true},
		{OutNotEmpty, "", "   ", false},
		{OutNotEmpty, "", "x", true},
		{OutRegexp, `^\d+$`, "12345", true},
		{OutRegexp, `^\d+$`, "12a45", false},
	}
	for _, tc := range cases {
		got, err := OutputMatch{Mode: tc.mode, Text: tc.text}.matches(tc.output)
		if err != nil {
			t.Fatalf("%s: %v", tc.mode, err)
		}
		if got != tc.want {
			t.Fatalf("%s %q on %q = %v, want %v", tc.mode, tc.text, tc.output, got, tc.want)
		}
	}

	if _, err := (OutputMatch{Mode: OutRegexp, Text: "("}).matches("x"); err == nil {
		t.Fatal("invalid pattern should error")
	}
}

func TestConditionMutualExclusivity(t *testing.T) {
	c := &Condition{
		Kind:   CPUKind,
		CPU:    &CPU{Op: OpGTE, Threshold: Percent(90), Duration: Window{Value: 15, Unit: Minutes}},
		Memory: &Memory{Op: OpGTE, Threshold: Percent(90), Duration: Window{Value: 15, Unit: Minutes}},
	}
	if errs := c.Validate(); len(errs) == 0 {
		t.Fatal("two populated payloads must be a configuration error")
	}

	c.Memory = nil
	if errs := c.Validate(); len(errs) != 0 {
		t.Fatalf("valid CPU condition rejected: %v", errs)
	}

	c.Kind = MemoryKind
	if errs := c.Validate(); len(errs) == 0 {
		t.Fatal("kind/payload mismatch must be a configuration error")
	}
}

func TestOperatorSubsets(t *testing.T) {
	cvss := &Condition{
		Kind:             OSPatchCVSSScoreKind,
		OSPatchCVSSScore: &OSPatchCVSSScore{Op: OpLT, Score: 7},
	}
	if errs := cvss.Validate(); len(errs) == 0 {
		t.Fatal("OSPatchCVSSScore only exposes > and >=")
	}

	cvss.OSPatchCVSSScore.Op = OpGTE
	if errs := cvss.Validate(); len(errs) != 0 {
		t.Fatalf("valid CVSS condition rejected: %v", errs)
	}
}

func TestUnitFamilyMismatchIsConfigurationError(t *testing.T) {
	c := &Condition{
		Kind: CPUKind,
		CPU:  &CPU{Op: OpGTE, Threshold: Bytes(1, GB), Duration: Window{Value: 15, Unit: Minutes}},
	}
	if errs := c.Validate(); len(errs) == 0 {
		t.Fatal("byte threshold on a percent variant must be rejected at load time")
	}
}

func TestRAIDAllIgnoredIsConfigurationError(t *testing.T) {
	c := &Condition{
		Kind: RAIDHealthStatusKind,
		RAIDHealthStatus: &RAIDHealthStatus{
			Controller:     RAIDIgnore,
			VirtualDrives:  RAIDIgnore,
			PhysicalDrives: RAIDIgnore,
			BatteryBackup:  RAIDIgnore,
		},
	}
	if errs := c.Validate(); len(errs) == 0 {
		t.Fatal("a RAID condition ignoring every component can never fire")
	}
}
