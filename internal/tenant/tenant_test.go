package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "t100")

	got, ok := FromContext(ctx)
	if !ok || got != "t100" {
		t.Errorf("FromContext() = %q, %v, want t100, true", got, ok)
	}
}

func TestFromContextEmpty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() reported a tenant on an empty context")
	}
	if _, err := MustFromContext(context.Background()); !errors.Is(err, ErrNoTenant) {
		t.Errorf("MustFromContext() error = %v, want ErrNoTenant", err)
	}
}

func TestExecutorBindsTenant(t *testing.T) {
	exec := NewExecutor(nil)

	var seen string
	err := exec.Run(context.Background(), "t100", func(ctx context.Context) error {
		seen, _ = FromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if seen != "t100" {
		t.Errorf("tenant in callback = %q, want t100", seen)
	}
}

func TestExecutorRejectsUnknownTenant(t *testing.T) {
	exec := NewExecutor(func(id string) bool { return id == "t100" })

	err := exec.Run(context.Background(), "t999", func(context.Context) error {
		t.Error("callback ran for unknown tenant")
		return nil
	})
	if !errors.Is(err, ErrNoTenant) {
		t.Errorf("Run() error = %v, want ErrNoTenant", err)
	}
}

func TestExecutorRejectsEmptyTenant(t *testing.T) {
	exec := NewExecutor(nil)
	if err := exec.Run(context.Background(), "", func(context.Context) error { return nil }); !errors.Is(err, ErrNoTenant) {
		t.Errorf("Run() error = %v, want ErrNoTenant", err)
	}
}

func TestExecutorPropagatesCallbackError(t *testing.T) {
	exec := NewExecutor(nil)
	want := errors.New("backend down")

	err := exec.Run(context.Background(), "t100", func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
}
