// Package sampler produces per-tick observations for condition evaluation.
// Each condition kind family has a provider; kinds with no local source on
// this endpoint simply have no provider registered, and the engine treats
// that as the sample being unavailable for the tick.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/breeze-rmm/monitor/internal/condition"
)

// Unavailable reports that the metric source could not produce a value this
// tick. The evaluator treats it as "not satisfied" without resetting window
// progress; it never crashes the loop.
type Unavailable struct {
	Kind   condition.Kind
	Reason string
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("sample unavailable for %s: %s", e.Kind, e.Reason)
}

func unavailablef(kind condition.Kind, format string, args ...any) *Unavailable {
	return &Unavailable{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// IsUnavailable reports whether err is a sample-unavailable condition.
func IsUnavailable(err error) bool {
	var u *Unavailable
	return errors.As(err, &u)
}

// Provider produces a sample for conditions of the kinds it serves. The
// returned sample's Value is expressed in the normalized unit of the
// condition's threshold family (percent, bytes, bytes per second).
type Provider interface {
	Sample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error)

func (f ProviderFunc) Sample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	return f(ctx, c, now)
}

// Set routes each condition kind to its registered provider.
type Set struct {
	providers map[condition.Kind]Provider
}

// NewSet returns an empty provider set.
func NewSet() *Set {
	return &Set{providers: make(map[condition.Kind]Provider)}
}

// Register installs p for the given kinds, replacing earlier registrations.
func (s *Set) Register(p Provider, kinds ...condition.Kind) {
	for _, k := range kinds {
		s.providers[k] = p
	}
}

// Has reports whether a provider serves the kind.
func (s *Set) Has(kind condition.Kind) bool {
	_, ok := s.providers[kind]
	return ok
}

// Sample produces the observation for c. An unregistered kind yields
// Unavailable, not an error of any other shape.
func (s *Set) Sample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	p, ok := s.providers[c.Kind]
	if !ok {
		return condition.Sample{}, unavailablef(c.Kind, "no provider registered on this endpoint")
	}
	return p.Sample(ctx, c, now)
}
