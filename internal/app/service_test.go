package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dfinsell-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	stopped  bool
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	<-ctx.Done()
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	f.stopped = true
	return f.stopErr
}

func TestRunnerStopsAllServicesOnCancel(t *testing.T) {
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b"}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := NewRunner(a, b).Run(ctx, time.Second, nil); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected run error: %v", err)
	}
	if !a.stopped || !b.stopped {
		t.Fatalf("all services must be stopped")
	}
}

func TestRunnerReportsStartAndStopErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &fakeService{name: "http", startErr: boom}
	other := &fakeService{name: "worker"}
	if err := NewRunner(failing, other).Run(context.Background(), time.Second, nil); !errors.Is(err, boom) {
		t.Fatalf("want start error got %v", err)
	}
	if !other.stopped {
		t.Fatalf("sibling service must be stopped")
	}

	stuck := errors.New("stuck")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewRunner(&fakeService{name: "worker", stopErr: stuck}).Run(ctx, time.Second, nil)
	if !errors.Is(err, stuck) {
		t.Fatalf("want stop error got %v", err)
	}
}

func TestBuildRunnerRejectsUnknownMode(t *testing.T) {
	if _, err := BuildRunner(&config.Config{}, "cron"); err == nil {
		t.Fatalf("unknown mode must be rejected")
	}
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("nil config must be rejected")
	}
}
