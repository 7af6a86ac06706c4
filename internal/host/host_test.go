//go:build !android

package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"bgservice/internal/controller"
	"bgservice/internal/host/local"
)

func TestDefault_IsLocal(t *testing.T) {
	h := Default(DefaultConfig())
	if _, ok := h.(*local.Host); !ok {
		t.Fatalf("Default() = %T, want *local.Host", h)
	}
	if h.Available() || Available() {
		t.Error("local host must not report an OS service manager")
	}
}

func TestDefault_AppliesBackgroundPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowBackgroundStart = false

	h := Default(cfg)
	c := controller.New(h)
	h.Attach(c)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	err := c.Start(context.Background())
	if !errors.Is(err, local.ErrBackgroundStartNotAllowed) {
		t.Errorf("expected ErrBackgroundStartNotAllowed, got %v", err)
	}
}

func TestDefault_StartsService(t *testing.T) {
	h := Default(DefaultConfig())
	c := controller.New(h)
	h.Attach(c)
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("controller Start failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !c.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("service did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDefault_QueueSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	cfg.AllowBackgroundStart = true

	h := Default(cfg).(*local.Host)
	c := controller.New(h)
	h.Attach(c)
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	for i := 0; i < 5; i++ {
		if err := c.Start(ctx); err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
	}
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if !c.IsRunning() {
		t.Error("service not running after queued starts")
	}
}
