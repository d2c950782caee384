package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-oidfed/registrar/storage"
	"github.com/go-oidfed/registrar/storage/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	s, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return New(s.EntityStorage())
}

func opRegistration(id string) Registration {
	return Registration{
		EntityID:       id,
		EntityType:     model.EntityTypeOP,
		Metadata:       map[string]any{"issuer": id},
		JWKS:           map[string]any{"keys": []any{}},
		AuthorityHints: []string{"https://fed.example.org"},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := newTestRegistry(t)
	entity, err := r.Register(opRegistration("https://op.example.org"))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if entity.Status != model.StatusPending {
		t.Errorf("new entity must be pending, got %s", entity.Status)
	}
	got, err := r.Get("https://op.example.org")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Metadata["issuer"] != "https://op.example.org" {
		t.Errorf("unexpected metadata %v", got.Metadata)
	}
	if len(got.AuthorityHints) != 1 || got.AuthorityHints[0] != "https://fed.example.org" {
		t.Errorf("unexpected authority hints %v", got.AuthorityHints)
	}
	var notFound model.NotFoundError
	if _, err = r.Get("https://unknown.example.org"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if _, err = r.Register(Registration{EntityID: "https://x.example.org", EntityType: "XX"}); err == nil {
		t.Error("expected error for invalid entity type")
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Register(opRegistration("https://op.example.org")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	second := opRegistration("https://op.example.org")
	second.Metadata = map[string]any{"issuer": "https://other.example.org"}
	_, err := r.Register(second)
	var dup *DuplicateEntityError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateEntityError, got %v", err)
	}
	got, _ := r.Get("https://op.example.org")
	if got.Metadata["issuer"] != "https://op.example.org" {
		t.Error("duplicate registration overwrote the stored entity")
	}
}

func TestConcurrentDuplicateRegistration(t *testing.T) {
	r := newTestRegistry(t)
	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Register(opRegistration("https://op.example.org"))
		}(i)
	}
	wg.Wait()
	succeeded := 0
	for _, err := range errs {
		var dup *DuplicateEntityError
		switch {
		case err == nil:
			succeeded++
		case !errors.As(err, &dup):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one successful registration, got %d", succeeded)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to model.Status
		allowed  bool
	}{
		{model.StatusPending, model.StatusActive, true},
		{model.StatusPending, model.StatusSuspended, false},
		{model.StatusActive, model.StatusSuspended, true},
		{model.StatusActive, model.StatusRevoked, true},
		{model.StatusActive, model.StatusPending, false},
		{model.StatusSuspended, model.StatusActive, true},
		{model.StatusSuspended, model.StatusRevoked, true},
		{model.StatusRevoked, model.StatusActive, false},
	}
	for _, test := range tests {
		if got := CanTransition(test.from, test.to); got != test.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", test.from, test.to, test.allowed, got)
		}
	}

	r := newTestRegistry(t)
	id := "https://op.example.org"
	if _, err := r.Register(opRegistration(id)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	var invalid *InvalidTransitionError
	if err := r.SetStatus(id, model.StatusRevoked); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if err := r.Activate(id); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if err := r.SetStatus(id, model.StatusSuspended); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	got, _ := r.Get(id)
	if got.Status != model.StatusSuspended {
		t.Errorf("expected suspended, got %s", got.Status)
	}
}

func TestListAndDiscard(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []string{"https://a.example.org", "https://b.example.org"} {
		if _, err := r.Register(opRegistration(id)); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	if err := r.Activate("https://a.example.org"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	active := model.StatusActive
	list, err := r.List("", &active)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].EntityID != "https://a.example.org" {
		t.Errorf("unexpected active entities %+v", list)
	}

	if err = r.Discard("https://a.example.org"); err == nil {
		t.Error("active entity must not be discarded")
	}
	if err = r.Discard("https://b.example.org"); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	list, _ = r.List("", nil)
	if len(list) != 1 {
		t.Errorf("expected one remaining entity, got %d", len(list))
	}
}
