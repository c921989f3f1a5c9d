// Package registry holds the read-only platform registries the engine
// resolves binding references against: notification channels, ticket
// templates, automations, and agent policies. Registries load once at
// startup from a YAML file and are injected; there is no ambient state.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/monitor/internal/policy"
)

// Channel is one notification delivery target.
type Channel struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"` // email, webhook, pager
	Target string `yaml:"target"`
}

// TicketTemplate is a named ticket body used when a binding's ticketing mode
// is not Disabled.
type TicketTemplate struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Automation is a name-keyed executable with its declared parameter slots, in
// order.
type Automation struct {
	Name       string   `yaml:"name"`
	Script     string   `yaml:"script"`
	ScriptType string   `yaml:"script_type"`
	Parameters []string `yaml:"parameters"`
}

// AgentPolicy names a set of scope paths a binding's agent-policy filter may
// reference.
type AgentPolicy struct {
	Name  string   `yaml:"name"`
	Paths []string `yaml:"paths"`
}

// File is the on-disk YAML shape.
type File struct {
	Channels      []Channel        `yaml:"channels"`
	Templates     []TicketTemplate `yaml:"ticket_templates"`
	Automations   []Automation     `yaml:"automations"`
	AgentPolicies []AgentPolicy    `yaml:"agent_policies"`
}

// Registry is the loaded, name-indexed form.
type Registry struct {
	channels      map[string]Channel
	templates     map[string]TicketTemplate
	automations   map[string]Automation
	agentPolicies map[string]AgentPolicy
}

// Load reads and indexes a registries file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registries file: %w", err)
	}
	return Parse(data)
}

// Parse indexes registries from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registries file: %w", err)
	}
	return New(f), nil
}

// New indexes an already-unmarshaled registries file.
func New(f File) *Registry {
	r := &Registry{
		channels:      make(map[string]Channel, len(f.Channels)),
		templates:     make(map[string]TicketTemplate, len(f.Templates)),
		automations:   make(map[string]Automation, len(f.Automations)),
		agentPolicies: make(map[string]AgentPolicy, len(f.AgentPolicies)),
	}
	for _, c := range f.Channels {
		r.channels[c.Name] = c
	}
	for _, t := range f.Templates {
		r.templates[t.Name] = t
	}
	for _, a := range f.Automations {
		r.automations[a.Name] = a
	}
	for _, p := range f.AgentPolicies {
		r.agentPolicies[p.Name] = p
	}
	return r
}

// Channel resolves a notification channel by name.
func (r *Registry) Channel(name string) (Channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

// Template resolves a ticket template by name.
func (r *Registry) Template(name string) (TicketTemplate, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Automation resolves an automation by name.
func (r *Registry) Automation(name string) (Automation, bool) {
	a, ok := r.automations[name]
	return a, ok
}

// AgentPolicy resolves an agent policy by name.
func (r *Registry) AgentPolicy(name string) (AgentPolicy, bool) {
	p, ok := r.agentPolicies[name]
	return p, ok
}

// ValidateRefs checks every registry reference a binding carries. A binding
// with dangling references never arms.
func (r *Registry) ValidateRefs(b *policy.Binding) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for _, ch := range b.Dispatch.Channels {
		if _, ok := r.channels[ch]; !ok {
			fail("policy %q references unknown notification channel %q", b.Name, ch)
		}
	}

	if b.Dispatch.Ticketing.Mode != policy.TicketDisabled {
		if _, ok := r.templates[b.Dispatch.Ticketing.Template]; !ok {
			fail("policy %q references unknown ticket template %q", b.Name, b.Dispatch.Ticketing.Template)
		}
	}

	for _, ref := range b.Dispatch.Automations {
		auto, ok := r.automations[ref.Name]
		if !ok {
			fail("policy %q references unknown automation %q", b.Name, ref.Name)
			continue
		}
		if len(ref.Parameters) > len(auto.Parameters) {
			fail("policy %q passes %d parameters to automation %q, which declares %d slots",
				b.Name, len(ref.Parameters), ref.Name, len(auto.Parameters))
		}
	}

	if b.Scope.AgentPolicy != "" {
		if _, ok := r.agentPolicies[b.Scope.AgentPolicy]; !ok {
			fail("policy %q references unknown agent policy %q", b.Name, b.Scope.AgentPolicy)
		}
	}
	return errs
}
