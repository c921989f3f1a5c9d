package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/breeze-rmm/monitor/internal/condition"
)

func TestUnregisteredKindIsUnavailable(t *testing.T) {
	set := NewSet()
	c := &condition.Condition{
		Kind:             condition.RAIDHealthStatusKind,
		RAIDHealthStatus: &condition.RAIDHealthStatus{Controller: condition.RAIDCriticalOnly},
	}

	_, err := set.Sample(context.Background(), c, time.Now())
	if err == nil {
		t.Fatal("expected an error for an unregistered kind")
	}
	if !IsUnavailable(err) {
		t.Fatalf("error should classify as unavailable, got %T: %v", err, err)
	}
}

func TestSetRoutesByKind(t *testing.T) {
	set := NewSet()
	set.Register(ProviderFunc(func(_ context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
		return condition.Sample{At: now, Value: 42}, nil
	}), condition.CPUKind)

	if !set.Has(condition.CPUKind) {
		t.Fatal("CPU provider not registered")
	}
	if set.Has(condition.MemoryKind) {
		t.Fatal("Memory should not be registered")
	}

	c := &condition.Condition{
		Kind: condition.CPUKind,
		CPU: &condition.CPU{
			Op:        condition.OpGTE,
			Threshold: condition.Percent(90),
			Duration:  condition.Window{Value: 15, Unit: condition.Minutes},
		},
	}
	sample, err := set.Sample(context.Background(), c, time.Now())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if sample.Value != 42 {
		t.Fatalf("sample value = %v", sample.Value)
	}
}

func TestDrivePathMapping(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"C:", `C:\`},
		{"/var", "/var"},
	}
	for _, tc := range cases {
		if got := drivePath(tc.in); got != tc.want {
			t.Fatalf("drivePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
