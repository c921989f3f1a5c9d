package dispatch

import (
	"context"
	"fmt"

	"github.com/breeze-rmm/monitor/internal/audit"
	"github.com/breeze-rmm/monitor/internal/events"
	"github.com/breeze-rmm/monitor/internal/policy"
	"github.com/breeze-rmm/monitor/internal/registry"
	"github.com/breeze-rmm/monitor/internal/scriptrun"
)

// ScriptExecutor runs one script to completion.
type ScriptExecutor interface {
	Run(ctx context.Context, req scriptrun.Request) (scriptrun.Outcome, error)
}

// Automations resolves automation references against the registry and runs
// their scripts locally. A non-zero exit code is a delivery failure; the
// automation declared it could not do its job.
type Automations struct {
	reg   *registry.Registry
	exec  ScriptExecutor
	trail *audit.Logger
}

func NewAutomations(reg *registry.Registry, exec ScriptExecutor, trail *audit.Logger) *Automations {
	return &Automations{reg: reg, exec: exec, trail: trail}
}

func (a *Automations) Run(ctx context.Context, ref policy.AutomationRef, ev events.Event) error {
	auto, ok := a.reg.Automation(ref.Name)
	if !ok {
		return fmt.Errorf("automation %q is not registered", ref.Name)
	}

	out, err := a.exec.Run(ctx, scriptrun.Request{
		Name:       ref.Name,
		Script:     auto.Script,
		ScriptType: auto.ScriptType,
		RunAs:      ref.RunAs,
		Parameters: ref.Parameters,
	})
	a.trail.Log(audit.EventAutomationRun, ev.PolicyID.String(), map[string]any{
		"automation": ref.Name,
		"exitCode":   out.ExitCode,
		"failed":     err != nil,
	})
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return fmt.Errorf("automation %q exited with code %d", ref.Name, out.ExitCode)
	}
	return nil
}
