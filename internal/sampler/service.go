package sampler

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/breeze-rmm/monitor/internal/condition"
	"github.com/breeze-rmm/monitor/internal/svcquery"
)

// Services samples local service state through the platform service manager.
// The sample carries host uptime so the condition's startup-delay gate can
// suppress alerts while services are still coming up after boot.
type Services struct{}

// NewServices returns a provider for the service-presence kind.
func NewServices() *Services {
	return &Services{}
}

// Kinds lists the condition kinds Services serves.
func (p *Services) Kinds() []condition.Kind {
	return []condition.Kind{condition.WindowsServiceKind}
}

// Sample implements Provider.
func (p *Services) Sample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	if c.Kind != condition.WindowsServiceKind {
		return condition.Sample{}, unavailablef(c.Kind, "not served by the service provider")
	}

	info, err := svcquery.GetStatus(ctx, c.WindowsService.Name)
	if err != nil {
		return condition.Sample{}, unavailablef(c.Kind, "service query: %v", err)
	}

	state := condition.ServiceDown
	if info.IsActive() {
		state = condition.ServiceUp
	}

	uptimeSecs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return condition.Sample{}, unavailablef(c.Kind, "host uptime: %v", err)
	}

	return condition.Sample{
		At:     now,
		State:  string(state),
		Uptime: time.Duration(uptimeSecs) * time.Second,
	}, nil
}
