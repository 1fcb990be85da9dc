package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

type scriptedChecker struct {
	mu      sync.Mutex
	results []checkResult
	calls   int
}

type checkResult struct {
	granted bool
	err     error
}

func (s *scriptedChecker) CheckCapability(context.Context) (runtime.CapabilityResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	r := s.results[idx]
	return runtime.CapabilityResponse{Granted: r.granted}, r.err
}

func (s *scriptedChecker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestProbeRunNowTracksState(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{results: []checkResult{
		{granted: true},
		{err: errors.New("device busy")},
		{granted: false},
	}}
	p := NewProbe(checker, "@every 1h")

	if _, known := p.Last(); known {
		t.Fatal("state should be unknown before the first check")
	}

	resp, err := p.RunNow(context.Background())
	if err != nil || !resp.Granted {
		t.Fatalf("first check = %+v, %v", resp, err)
	}

	if _, err := p.RunNow(context.Background()); err == nil {
		t.Fatal("expected oracle failure")
	}
	if granted, known := p.Last(); !known || !granted {
		t.Fatalf("failed check must keep last state, got granted=%v known=%v", granted, known)
	}

	if _, err := p.RunNow(context.Background()); err != nil {
		t.Fatalf("third check: %v", err)
	}
	if granted, _ := p.Last(); granted {
		t.Fatal("expected revoked state")
	}
}

func TestProbeStartChecksImmediatelyAndOnSchedule(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{results: []checkResult{{granted: true}}}
	p := NewProbe(checker, "@every 1s")

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if checker.count() != 1 {
		t.Fatalf("expected immediate check, got %d calls", checker.count())
	}
	if granted, known := p.Last(); !known || !granted {
		t.Fatal("expected granted state after start")
	}

	waitFor(t, 3*time.Second, func() bool { return checker.count() >= 2 })

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestProbeStartErrors(t *testing.T) {
	t.Parallel()

	if err := NewProbe(nil, "@every 1m").Start(context.Background()); err == nil {
		t.Fatal("expected error without checker")
	}

	checker := &scriptedChecker{results: []checkResult{{granted: true}}}
	err := NewProbe(checker, "not a schedule").Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "register probe schedule") {
		t.Fatalf("expected schedule error, got %v", err)
	}
	if checker.count() != 0 {
		t.Fatal("invalid schedule must not run a check")
	}

	p := NewProbe(checker, "@every 1h")
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(context.Background())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected already started error")
	}
}

func TestProbeConcurrentStartRegistersOnce(t *testing.T) {
	t.Parallel()

	p := NewProbe(&scriptedChecker{results: []checkResult{{granted: true}}}, "@every 1h")
	defer p.Stop(context.Background())

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Start(context.Background()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful start, got %d", succeeded)
	}
	if n := len(p.cron.Entries()); n != 1 {
		t.Fatalf("expected one scheduled entry, got %d", n)
	}
}

func TestProbeRetriesStartAfterBadSchedule(t *testing.T) {
	t.Parallel()

	p := NewProbe(&scriptedChecker{results: []checkResult{{granted: true}}}, "not a schedule")
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
	p.schedule = "@every 1h"
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start after failed registration: %v", err)
	}
	defer p.Stop(context.Background())
}

func TestProbeStopWithoutStart(t *testing.T) {
	t.Parallel()

	p := NewProbe(&scriptedChecker{results: []checkResult{{}}}, "@every 1h")
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
