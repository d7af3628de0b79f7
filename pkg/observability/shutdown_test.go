package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, 0)
	if sm.timeout != defaultShutdownTimeout {
		t.Errorf("Expected default timeout 30s, got %v", sm.timeout)
	}
}

func TestShutdownManager_RunsFuncsInOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), &http.Server{}, time.Second)

	var order []string
	for _, name := range []string{"broadcast", "store", "otel"} {
		sm.RegisterShutdownFunc(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Join(order, ",") != "broadcast,store,otel" {
		t.Errorf("Unexpected shutdown order %v", order)
	}
}

func TestShutdownManager_ContinuesPastErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)
	sm.RegisterShutdownFunc("store", func(ctx context.Context) error {
		return errors.New("close failed")
	})
	var otelClosed bool
	sm.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		otelClosed = true
		return nil
	})

	err := sm.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "store: close failed") {
		t.Fatalf("Expected joined store error, got %v", err)
	}
	if !otelClosed {
		t.Error("Expected later shutdown functions to run")
	}
}

func TestShutdownManager_WaitForShutdown(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)

	done := make(chan struct{})
	sm.RegisterShutdownFunc("marker", func(ctx context.Context) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sm.WaitForShutdown(ctx) }()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown function was not called")
	}
	if err := <-errCh; err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
