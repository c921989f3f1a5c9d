// Package dispatch delivers the side effects of a policy state transition:
// channel notifications, technician notifications, ticketing, and ordered
// automations. Delivery failures are logged per target and never roll back
// the state transition or block sibling targets.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/breeze-rmm/monitor/internal/events"
	"github.com/breeze-rmm/monitor/internal/logging"
	"github.com/breeze-rmm/monitor/internal/policy"
)

var log = logging.L("dispatch")

// Error reports a failed delivery to one target. The transition it belongs
// to has already happened and stands.
type Error struct {
	Target string // channel name, "technicians", "ticket", or automation name
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Notifier delivers notifications to channels and technicians.
type Notifier interface {
	Notify(ctx context.Context, channel string, ev events.Event) error
	NotifyTechnicians(ctx context.Context, ev events.Event) error
}

// Ticketer creates and closes tickets from a named template.
type Ticketer interface {
	Create(ctx context.Context, template string, ev events.Event) (ticketID string, err error)
	Close(ctx context.Context, ticketID string) error
}

// AutomationRunner executes one named automation under its run-as identity.
type AutomationRunner interface {
	Run(ctx context.Context, ref policy.AutomationRef, ev events.Event) error
}

// Dispatcher fans a transition out to its configured targets.
type Dispatcher struct {
	notifier Notifier
	ticketer Ticketer
	runner   AutomationRunner
}

// New wires a dispatcher. Any collaborator may be nil; its targets are then
// skipped (a dispatch plan naming them still validates upstream against the
// registries).
func New(notifier Notifier, ticketer Ticketer, runner AutomationRunner) *Dispatcher {
	return &Dispatcher{notifier: notifier, ticketer: ticketer, runner: runner}
}

// OnActive runs the full plan for an Inactive to Active transition. Every
// failure is collected and logged; delivery continues past failures.
func (d *Dispatcher) OnActive(ctx context.Context, b *policy.Binding, ev events.Event) []error {
	var errs []error
	report := func(target string, err error) {
		de := &Error{Target: target, Err: err}
		log.Error("delivery failed",
			logging.KeyPolicyID, b.ID.String(),
			"target", target,
			logging.KeyError, err)
		errs = append(errs, de)
	}

	if d.notifier != nil {
		for _, ch := range b.Dispatch.DedupedChannels() {
			if err := d.notifier.Notify(ctx, ch, ev); err != nil {
				report(ch, err)
			}
		}
		if b.Dispatch.Technicians == policy.TechSent {
			if err := d.notifier.NotifyTechnicians(ctx, ev); err != nil {
				report("technicians", err)
			}
		}
	}

	if d.ticketer != nil && b.Dispatch.Ticketing.Mode != policy.TicketDisabled {
		ticketID, err := d.ticketer.Create(ctx, b.Dispatch.Ticketing.Template, ev)
		if err != nil {
			report("ticket", err)
		} else if b.Dispatch.Ticketing.Mode == policy.TicketCreateAndClose {
			if err := d.ticketer.Close(ctx, ticketID); err != nil {
				report("ticket", err)
			}
		}
	}

	if d.runner != nil {
		// Declared order, one failure domain per automation.
		for _, ref := range b.Dispatch.Automations {
			if err := d.runner.Run(ctx, ref, ev); err != nil {
				report(ref.Name, err)
			}
		}
	}

	return errs
}

// OnReset notifies channels of a reset when the binding asks for it. Tickets
// and automations only fire on activation.
func (d *Dispatcher) OnReset(ctx context.Context, b *policy.Binding, ev events.Event) []error {
	if d.notifier == nil {
		return nil
	}
	var errs []error
	for _, ch := range b.Dispatch.DedupedChannels() {
		if err := d.notifier.Notify(ctx, ch, ev); err != nil {
			de := &Error{Target: ch, Err: err}
			log.Error("reset notification failed",
				logging.KeyPolicyID, b.ID.String(),
				"target", ch,
				logging.KeyError, err)
			errs = append(errs, de)
		}
	}
	return errs
}

// IsDispatchError reports whether err is a per-target delivery failure.
func IsDispatchError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
