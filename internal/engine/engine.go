// Package engine runs the evaluation loop: once per tick it samples each
// armed binding's condition, applies duration gating, advances the binding's
// state machine, and fans resulting transitions out to the event sink and the
// dispatch plan. Script conditions run on their own schedule in worker pool
// slots; the tick only consumes their latest outcome.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/audit"
	"github.com/breeze-rmm/monitor/internal/condition"
	"github.com/breeze-rmm/monitor/internal/dispatch"
	"github.com/breeze-rmm/monitor/internal/events"
	"github.com/breeze-rmm/monitor/internal/health"
	"github.com/breeze-rmm/monitor/internal/logging"
	"github.com/breeze-rmm/monitor/internal/policy"
	"github.com/breeze-rmm/monitor/internal/registry"
	"github.com/breeze-rmm/monitor/internal/sampler"
	"github.com/breeze-rmm/monitor/internal/scriptrun"
	"github.com/breeze-rmm/monitor/internal/workerpool"
)

var log = logging.L("engine")

// DefaultTickInterval is the evaluation cadence when none is configured.
const DefaultTickInterval = 15 * time.Second

// Config carries the engine's runtime settings.
type Config struct {
	TickInterval time.Duration
	EndpointID   string
}

// ScriptRunner executes one monitoring script to completion.
type ScriptRunner interface {
	Run(ctx context.Context, req scriptrun.Request) (scriptrun.Outcome, error)
}

// Deps are the engine's collaborators. Samplers is required; the rest may be
// nil, in which case the corresponding effect is skipped.
type Deps struct {
	Samplers   *sampler.Set
	Fields     condition.FieldLookup
	Dispatcher *dispatch.Dispatcher
	Sink       events.Sink
	Scripts    ScriptRunner
	Pool       *workerpool.Pool
	Registry   *registry.Registry
	Audit      *audit.Logger
	Health     *health.Monitor

	// OnScriptError receives script execution failures (launch failure or
	// timeout) for bindings that enabled the error notification. Defaults to
	// a log line.
	OnScriptError func(b *policy.Binding, err error)
}

// gate accumulates continuous satisfaction toward a duration window. One
// nominal tick of credit per satisfied tick; an unsatisfied tick resets, an
// unavailable tick holds progress without adding to it.
type gate struct {
	window      time.Duration
	accumulated time.Duration
}

// advance consumes one tick and reports whether the window is met.
func (g *gate) advance(satisfied, available bool, tick time.Duration) bool {
	if !available {
		return false
	}
	if !satisfied {
		g.accumulated = 0
		return false
	}
	g.accumulated += tick
	return g.accumulated >= g.window
}

// scriptState latches the most recent scheduled run of a script condition.
type scriptState struct {
	mu        sync.Mutex
	nextRun   time.Time
	running   bool
	evaluated bool
	satisfied bool
}

type entry struct {
	binding *policy.Binding
	machine *policy.Machine
	gate    gate
	script  *scriptState
}

// Engine evaluates armed bindings. Tick is synchronous and single-threaded;
// only script runs leave the loop, via the worker pool.
type Engine struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	// cache shares one observation per metric source within a tick, so two
	// bindings on the same source see the same value.
	cache map[string]cachedSample
}

type cachedSample struct {
	sample condition.Sample
	err    error
}

// New builds an engine. Zero or negative tick interval falls back to the
// default.
func New(cfg Config, deps Deps) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard{}
	}
	if deps.OnScriptError == nil {
		deps.OnScriptError = func(b *policy.Binding, err error) {
			log.Error("script execution failed",
				logging.KeyPolicyID, b.ID.String(),
				logging.KeyError, err)
		}
	}
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Arm validates a binding and adds it to the evaluation set. Validation
// covers the binding's own schema plus registry references when a registry is
// configured.
func (e *Engine) Arm(b *policy.Binding) error {
	if errs := b.Validate(); len(errs) > 0 {
		return fmt.Errorf("binding %q: %w", b.Name, errs[0])
	}
	if e.deps.Registry != nil {
		if errs := e.deps.Registry.ValidateRefs(b); len(errs) > 0 {
			return fmt.Errorf("binding %q: %w", b.Name, errs[0])
		}
	}

	ent := &entry{
		binding: b,
		machine: policy.NewMachine(b),
		gate:    gate{window: b.Condition.GateWindow().Duration()},
	}
	if b.Condition.Kind == condition.ScriptResultKind {
		ent.script = &scriptState{}
	}

	e.mu.Lock()
	e.entries[b.ID] = ent
	e.mu.Unlock()

	log.Info("binding armed",
		logging.KeyPolicyID, b.ID.String(),
		logging.KeyKind, string(b.Condition.Kind),
		"name", b.Name)
	e.deps.Audit.Log(audit.EventPolicyArmed, b.ID.String(), map[string]any{
		"name": b.Name,
		"kind": string(b.Condition.Kind),
	})
	return nil
}

// Disarm removes a binding from the evaluation set.
func (e *Engine) Disarm(id uuid.UUID) {
	e.mu.Lock()
	delete(e.entries, id)
	e.mu.Unlock()
}

// State reports the current lifecycle state of a binding, or "" if it is not
// armed.
func (e *Engine) State(id uuid.UUID) policy.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[id]; ok {
		return ent.machine.State()
	}
	return ""
}

// Run drives Tick on the configured cadence until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	log.Info("evaluation loop started", "tickInterval", e.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("evaluation loop stopped")
			return
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}

// Tick evaluates every armed binding once against the same instant.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache = make(map[string]cachedSample)
	for _, ent := range e.entries {
		e.evaluate(ctx, ent, now)
	}
}

func (e *Engine) evaluate(ctx context.Context, ent *entry, now time.Time) {
	var (
		satisfied bool
		available = true
		sample    condition.Sample
	)

	switch ent.binding.Condition.Kind {
	case condition.ScriptResultKind:
		e.scheduleScript(ent, now)
		ent.script.mu.Lock()
		satisfied = ent.script.satisfied
		available = ent.script.evaluated
		ent.script.mu.Unlock()

	case condition.CustomFieldsKind:
		sample = condition.Sample{At: now, Fields: e.deps.Fields}
		ok, err := ent.binding.Condition.Satisfied(sample)
		if err != nil {
			available = false
		} else {
			satisfied = ok
		}

	default:
		var err error
		sample, err = e.sampleShared(ctx, ent.binding.Condition, now)
		if err != nil {
			available = false
			if sampler.IsUnavailable(err) {
				e.setHealth(ent.binding.Condition.Kind, health.Degraded, err.Error())
			} else {
				e.setHealth(ent.binding.Condition.Kind, health.Unhealthy, err.Error())
				log.Warn("sampling failed",
					logging.KeyPolicyID, ent.binding.ID.String(),
					logging.KeyKind, string(ent.binding.Condition.Kind),
					logging.KeyError, err)
			}
		} else {
			e.setHealth(ent.binding.Condition.Kind, health.Healthy, "")
			ok, err := ent.binding.Condition.Satisfied(sample)
			if err != nil {
				available = false
			} else {
				satisfied = ok
			}
		}
	}

	gated := ent.gate.advance(satisfied, available, e.cfg.TickInterval)
	transitions := ent.machine.Apply(gated, now)
	for _, tr := range transitions {
		e.emit(ctx, ent, tr, sample)
	}
}

// setHealth records the sampling health for one kind when a health monitor
// is wired.
func (e *Engine) setHealth(kind condition.Kind, status health.Status, message string) {
	if e.deps.Health == nil {
		return
	}
	e.deps.Health.Update("sampler/"+string(kind), status, message)
}

// sampleShared returns the cached observation for the condition's metric
// source, sampling once per source per tick.
func (e *Engine) sampleShared(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	key := sampleKey(c)
	if cached, ok := e.cache[key]; ok {
		return cached.sample, cached.err
	}
	s, err := e.deps.Samplers.Sample(ctx, c, now)
	e.cache[key] = cachedSample{sample: s, err: err}
	return s, err
}

// sampleKey identifies a metric source: the kind plus whatever parameters
// select a distinct source (drive, process name, unit family).
func sampleKey(c *condition.Condition) string {
	switch c.Kind {
	case condition.DiskActiveTimeKind:
		return string(c.Kind) + "/" + c.DiskActiveTime.Drive
	case condition.DiskFreeSpaceKind:
		return string(c.Kind) + "/" + c.DiskFreeSpace.Drive
	case condition.DiskTransferRateKind:
		return string(c.Kind) + "/" + c.DiskTransferRate.Drive
	case condition.DiskUsageKind:
		return string(c.Kind) + "/" + c.DiskUsage.Drive + "/" + string(c.DiskUsage.Threshold.Kind)
	case condition.MemoryKind:
		return string(c.Kind) + "/" + string(c.Memory.Threshold.Kind)
	case condition.ProcessKind:
		return string(c.Kind) + "/" + c.Process.Name
	case condition.ProcessResourceKind:
		return string(c.Kind) + "/" + c.ProcessResource.Name + "/" +
			string(c.ProcessResource.Metric) + "/" + string(c.ProcessResource.Threshold.Kind)
	case condition.SoftwareKind:
		return string(c.Kind) + "/" + c.Software.Name
	case condition.WindowsServiceKind:
		return string(c.Kind) + "/" + c.WindowsService.Name
	}
	return string(c.Kind)
}

// scheduleScript submits a script run when it is due and none is in flight.
func (e *Engine) scheduleScript(ent *entry, now time.Time) {
	if e.deps.Scripts == nil || e.deps.Pool == nil {
		return
	}
	sc := ent.binding.Condition.ScriptResult

	st := ent.script
	st.mu.Lock()
	if st.running || now.Before(st.nextRun) {
		st.mu.Unlock()
		return
	}
	st.running = true
	st.nextRun = now.Add(sc.RunEvery.Duration())
	st.mu.Unlock()

	b := ent.binding
	submitted := e.deps.Pool.Submit(func() {
		defer func() {
			st.mu.Lock()
			st.running = false
			st.mu.Unlock()
		}()

		out, err := e.deps.Scripts.Run(e.deps.Pool.Context(), scriptrun.Request{
			Name:       b.Name,
			Script:     sc.Script,
			ScriptType: sc.ScriptType,
			Timeout:    sc.Timeout.Duration(),
		})
		outcome := condition.ScriptOutcome{
			Failed:   err != nil,
			TimedOut: out.TimedOut,
			ExitCode: out.ExitCode,
			Output:   out.Output,
		}
		e.deps.Audit.Log(audit.EventScriptRun, b.ID.String(), map[string]any{
			"exitCode": out.ExitCode,
			"timedOut": out.TimedOut,
			"failed":   err != nil,
		})
		if err != nil && sc.ErrorNotification {
			e.deps.OnScriptError(b, err)
		}

		ok, evalErr := sc.EvaluateScript(outcome)
		if evalErr != nil {
			log.Warn("script output matching failed",
				logging.KeyPolicyID, b.ID.String(),
				logging.KeyError, evalErr)
			ok = false
		}

		st.mu.Lock()
		st.evaluated = true
		st.satisfied = ok
		st.mu.Unlock()
	})
	if !submitted {
		st.mu.Lock()
		st.running = false
		st.mu.Unlock()
		log.Warn("script run rejected, pool saturated", logging.KeyPolicyID, b.ID.String())
	}
}

// emit publishes the transition event and runs the dispatch plan.
func (e *Engine) emit(ctx context.Context, ent *entry, tr policy.Transition, sample condition.Sample) {
	b := ent.binding
	ev := events.Event{
		PolicyID:      b.ID,
		PolicyName:    b.Name,
		EndpointID:    e.cfg.EndpointID,
		ConditionKind: string(b.Condition.Kind),
		PreviousState: string(tr.From),
		NewState:      string(tr.To),
		Timestamp:     tr.At,
		SampledValue:  sample.Value,
		Threshold:     thresholdString(b.Condition),
	}

	log.Info("state transition",
		logging.KeyPolicyID, b.ID.String(),
		logging.KeyKind, ev.ConditionKind,
		"from", ev.PreviousState,
		"to", ev.NewState)

	e.deps.Sink.Publish(ev)
	e.deps.Audit.Log(audit.EventPolicyTransition, b.ID.String(), map[string]any{
		"name": b.Name,
		"from": ev.PreviousState,
		"to":   ev.NewState,
	})

	if e.deps.Dispatcher == nil {
		return
	}
	activated := tr.From == policy.Inactive && tr.To == policy.Active
	reset := tr.To == policy.Inactive && tr.NotifyReset
	if !activated && !reset {
		return
	}

	// The plan can run automation scripts for minutes. It leaves the tick
	// the same way script conditions do, so a slow delivery never stalls
	// evaluation of the other bindings.
	deliver := func(ctx context.Context) {
		if activated {
			e.deps.Dispatcher.OnActive(ctx, b, ev)
		} else {
			e.deps.Dispatcher.OnReset(ctx, b, ev)
		}
	}
	if e.deps.Pool != nil && e.deps.Pool.Submit(func() { deliver(e.deps.Pool.Context()) }) {
		return
	}
	go deliver(ctx)
}

// thresholdString renders the configured threshold of numeric variants for
// the event payload.
func thresholdString(c *condition.Condition) string {
	switch c.Kind {
	case condition.BatteryMonitoringKind:
		return c.BatteryMonitoring.Threshold.String()
	case condition.CPUKind:
		return c.CPU.Threshold.String()
	case condition.DiskActiveTimeKind:
		return c.DiskActiveTime.Threshold.String()
	case condition.DiskFreeSpaceKind:
		return c.DiskFreeSpace.Threshold.String()
	case condition.DiskTransferRateKind:
		return c.DiskTransferRate.Threshold.String()
	case condition.DiskUsageKind:
		return c.DiskUsage.Threshold.String()
	case condition.MemoryKind:
		return c.Memory.Threshold.String()
	case condition.NetworkUtilizationKind:
		return c.NetworkUtilization.Threshold.String()
	case condition.OSPatchCVSSScoreKind:
		return fmt.Sprintf("%.1f", c.OSPatchCVSSScore.Score)
	case condition.PatchLastInstalledKind:
		return fmt.Sprintf("%d days", c.PatchLastInstalled.Days)
	case condition.ProcessResourceKind:
		return c.ProcessResource.Threshold.String()
	case condition.SystemUptimeKind:
		return c.SystemUptime.Duration.String()
	}
	return ""
}
