package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/events"
	"github.com/breeze-rmm/monitor/internal/policy"
)

type fakeNotifier struct {
	channels    []string
	technicians int
	failOn      map[string]error
}

func (f *fakeNotifier) Notify(_ context.Context, channel string, _ events.Event) error {
	if err := f.failOn[channel]; err != nil {
		return err
	}
	f.channels = append(f.channels, channel)
	return nil
}

func (f *fakeNotifier) NotifyTechnicians(context.Context, events.Event) error {
	f.technicians++
	return nil
}

type fakeTicketer struct {
	created []string
	closed  []string
	fail    error
}

func (f *fakeTicketer) Create(_ context.Context, template string, _ events.Event) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.created = append(f.created, template)
	return "T-" + template, nil
}

func (f *fakeTicketer) Close(_ context.Context, id string) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeRunner struct {
	ran    []string
	failOn map[string]error
}

func (f *fakeRunner) Run(_ context.Context, ref policy.AutomationRef, _ events.Event) error {
	if err := f.failOn[ref.Name]; err != nil {
		return err
	}
	f.ran = append(f.ran, ref.Name)
	return nil
}

func planBinding(d policy.ActionDispatch) *policy.Binding {
	return &policy.Binding{ID: uuid.New(), Name: "test policy", Dispatch: d}
}

func TestOnActiveDeliversDedupedChannelsInOrder(t *testing.T) {
	n := &fakeNotifier{}
	disp := New(n, nil, nil)

	b := planBinding(policy.ActionDispatch{
		Channels:    []string{"ops", "oncall", "ops"},
		Technicians: policy.TechSent,
	})
	if errs := disp.OnActive(context.Background(), b, events.Event{}); len(errs) != 0 {
		t.Fatalf("OnActive: %v", errs)
	}
	if len(n.channels) != 2 || n.channels[0] != "ops" || n.channels[1] != "oncall" {
		t.Fatalf("channels = %v", n.channels)
	}
	if n.technicians != 1 {
		t.Fatalf("technicians notified %d times", n.technicians)
	}
}

func TestOnActiveTechnicianSuppressed(t *testing.T) {
	n := &fakeNotifier{}
	disp := New(n, nil, nil)

	b := planBinding(policy.ActionDispatch{Technicians: policy.TechSuppressed})
	disp.OnActive(context.Background(), b, events.Event{})
	if n.technicians != 0 {
		t.Fatal("suppressed mode must not notify technicians")
	}
}

func TestTicketingModes(t *testing.T) {
	tk := &fakeTicketer{}
	disp := New(nil, tk, nil)

	b := planBinding(policy.ActionDispatch{
		Ticketing: policy.Ticketing{Mode: policy.TicketCreate, Template: "incident"},
	})
	disp.OnActive(context.Background(), b, events.Event{})
	if len(tk.created) != 1 || len(tk.closed) != 0 {
		t.Fatalf("Create mode: created=%v closed=%v", tk.created, tk.closed)
	}

	tk = &fakeTicketer{}
	disp = New(nil, tk, nil)
	b = planBinding(policy.ActionDispatch{
		Ticketing: policy.Ticketing{Mode: policy.TicketCreateAndClose, Template: "audit"},
	})
	disp.OnActive(context.Background(), b, events.Event{})
	if len(tk.created) != 1 || len(tk.closed) != 1 || tk.closed[0] != "T-audit" {
		t.Fatalf("CreateAndClose mode: created=%v closed=%v", tk.created, tk.closed)
	}

	tk = &fakeTicketer{}
	disp = New(nil, tk, nil)
	b = planBinding(policy.ActionDispatch{Ticketing: policy.Ticketing{Mode: policy.TicketDisabled}})
	disp.OnActive(context.Background(), b, events.Event{})
	if len(tk.created) != 0 {
		t.Fatal("Disabled mode must not create tickets")
	}
}

func TestAutomationFailureIsIsolated(t *testing.T) {
	r := &fakeRunner{failOn: map[string]error{"second": errors.New("boom")}}
	disp := New(nil, nil, r)

	b := planBinding(policy.ActionDispatch{
		Automations: []policy.AutomationRef{
			{Name: "first", RunAs: policy.RunAsSystem},
			{Name: "second", RunAs: policy.RunAsSystem},
			{Name: "third", RunAs: policy.RunAsSystem},
		},
	})
	errs := disp.OnActive(context.Background(), b, events.Event{})
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	if !IsDispatchError(errs[0]) {
		t.Fatalf("error should classify as dispatch failure, got %T", errs[0])
	}
	// The failure of the second automation must not block the third.
	if len(r.ran) != 2 || r.ran[0] != "first" || r.ran[1] != "third" {
		t.Fatalf("ran = %v", r.ran)
	}
}

func TestChannelFailureDoesNotBlockSiblings(t *testing.T) {
	n := &fakeNotifier{failOn: map[string]error{"ops": errors.New("smtp down")}}
	disp := New(n, nil, nil)

	b := planBinding(policy.ActionDispatch{Channels: []string{"ops", "oncall"}})
	errs := disp.OnActive(context.Background(), b, events.Event{})
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	if len(n.channels) != 1 || n.channels[0] != "oncall" {
		t.Fatalf("channels = %v", n.channels)
	}
}

func TestOnResetNotifiesChannelsOnly(t *testing.T) {
	n := &fakeNotifier{}
	tk := &fakeTicketer{}
	r := &fakeRunner{}
	disp := New(n, tk, r)

	b := planBinding(policy.ActionDispatch{
		Channels:    []string{"ops"},
		Technicians: policy.TechSent,
		Ticketing:   policy.Ticketing{Mode: policy.TicketCreate, Template: "incident"},
		Automations: []policy.AutomationRef{{Name: "restart", RunAs: policy.RunAsSystem}},
	})
	disp.OnReset(context.Background(), b, events.Event{})
	if len(n.channels) != 1 {
		t.Fatalf("channels = %v", n.channels)
	}
	if n.technicians != 0 || len(tk.created) != 0 || len(r.ran) != 0 {
		t.Fatal("reset must not create tickets, run automations, or page technicians")
	}
}
