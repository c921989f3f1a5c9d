package policy

import (
	"testing"
	"time"

	"github.com/breeze-rmm/monitor/internal/condition"
)

func deviceDownBinding(ar AutoReset) *Binding {
	return &Binding{
		Name:     "device down",
		Scope:    TargetScope{Path: "/servers"},
		Severity: SevCritical,
		Priority: PrioHigh,
		Condition: &condition.Condition{
			Kind:       condition.DeviceDownKind,
			DeviceDown: &condition.DeviceDown{Duration: condition.Window{Value: 5, Unit: condition.Minutes}},
		},
		AutoReset: ar,
		Dispatch:  ActionDispatch{Technicians: TechSuppressed, Ticketing: Ticketing{Mode: TicketDisabled}},
	}
}

func tick(t *testing.T, m *Machine, satisfied bool, at time.Time) []Transition {
	t.Helper()
	return m.Apply(satisfied, at)
}

func TestActivatesOnceWhileContinuouslyTrue(t *testing.T) {
	m := NewMachine(deviceDownBinding(AutoReset{}))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	trs := tick(t, m, true, t0)
	if len(trs) != 1 || trs[0].From != Inactive || trs[0].To != Active {
		t.Fatalf("first satisfied tick: %+v", trs)
	}
	for i := 1; i <= 10; i++ {
		if trs := tick(t, m, true, t0.Add(time.Duration(i)*time.Minute)); len(trs) != 0 {
			t.Fatalf("tick %d re-fired while Active: %+v", i, trs)
		}
	}
	if m.State() != Active {
		t.Fatalf("state = %s, want Active", m.State())
	}
}

func TestResetWhenNoLongerMet(t *testing.T) {
	m := NewMachine(deviceDownBinding(AutoReset{
		Enabled:         true,
		WhenNoLongerMet: true,
		NotifyOnReset:   true,
	}))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tick(t, m, true, t0)
	trs := tick(t, m, false, t0.Add(time.Minute))
	if len(trs) != 1 || trs[0].To != Inactive || !trs[0].NotifyReset {
		t.Fatalf("reset transition: %+v", trs)
	}

	// A fresh satisfied period activates again.
	trs = tick(t, m, true, t0.Add(2*time.Minute))
	if len(trs) != 1 || trs[0].To != Active {
		t.Fatalf("re-activation after reset: %+v", trs)
	}
}

func TestIntervalResetClearsRegardlessOfSatisfaction(t *testing.T) {
	m := NewMachine(deviceDownBinding(AutoReset{
		Enabled:       true,
		ResetInterval: condition.Window{Value: 30, Unit: condition.Minutes},
		NotifyOnReset: true,
		TriggerAgain:  true,
	}))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tick(t, m, true, t0)
	if trs := tick(t, m, true, t0.Add(29*time.Minute)); len(trs) != 0 {
		t.Fatalf("reset before interval elapsed: %+v", trs)
	}

	trs := tick(t, m, true, t0.Add(30*time.Minute))
	if len(trs) != 2 {
		t.Fatalf("interval reset: %+v", trs)
	}
	if trs[0].From != Active || trs[0].To != Resetting {
		t.Fatalf("first transition: %+v", trs[0])
	}
	if trs[1].From != Resetting || trs[1].To != Inactive || !trs[1].NotifyReset {
		t.Fatalf("second transition: %+v", trs[1])
	}

	// TriggerAgain re-arms: the still-true condition fires again next tick.
	trs = tick(t, m, true, t0.Add(31*time.Minute))
	if len(trs) != 1 || trs[0].To != Active {
		t.Fatalf("re-arm after interval reset: %+v", trs)
	}
}

func TestIntervalResetWithoutTriggerAgainSuppressesRefire(t *testing.T) {
	m := NewMachine(deviceDownBinding(AutoReset{
		Enabled:       true,
		ResetInterval: condition.Window{Value: 30, Unit: condition.Minutes},
	}))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tick(t, m, true, t0)
	tick(t, m, true, t0.Add(30*time.Minute))
	if m.State() != Inactive {
		t.Fatalf("state after interval reset = %s", m.State())
	}

	// Condition stays true: no re-fire, ever, until it goes false once.
	for i := 31; i <= 90; i++ {
		if trs := tick(t, m, true, t0.Add(time.Duration(i)*time.Minute)); len(trs) != 0 {
			t.Fatalf("suppressed binding re-fired at minute %d: %+v", i, trs)
		}
	}

	// One false tick clears the suppression.
	tick(t, m, false, t0.Add(91*time.Minute))
	trs := tick(t, m, true, t0.Add(92*time.Minute))
	if len(trs) != 1 || trs[0].To != Active {
		t.Fatalf("re-activation after the condition went false: %+v", trs)
	}
}

func TestAutoResetDisabledStaysActive(t *testing.T) {
	m := NewMachine(deviceDownBinding(AutoReset{}))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tick(t, m, true, t0)
	tick(t, m, false, t0.Add(time.Minute))
	if m.State() != Active {
		t.Fatalf("binding without auto reset cleared itself: %s", m.State())
	}
}

func TestTriggerAgainRestrictedToSupportedKinds(t *testing.T) {
	b := deviceDownBinding(AutoReset{
		Enabled:       true,
		ResetInterval: condition.Window{Value: 30, Unit: condition.Minutes},
		TriggerAgain:  true,
	})
	if errs := b.Validate(); len(errs) != 0 {
		t.Fatalf("device down with TriggerAgain rejected: %v", errs)
	}

	b.Condition = &condition.Condition{
		Kind: condition.CPUKind,
		CPU: &condition.CPU{
			Op:        condition.OpGTE,
			Threshold: condition.Percent(90),
			Duration:  condition.Window{Value: 15, Unit: condition.Minutes},
		},
	}
	if errs := b.Validate(); len(errs) == 0 {
		t.Fatal("TriggerAgain on a CPU condition must be rejected")
	}
}

func TestAutoResetRequiresModeWhenEnabled(t *testing.T) {
	b := deviceDownBinding(AutoReset{Enabled: true})
	if errs := b.Validate(); len(errs) == 0 {
		t.Fatal("enabled auto reset with neither mode must be rejected")
	}
}
