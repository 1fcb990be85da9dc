// Package scheduler runs periodic background checks for the listener.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cashflowly/mpesa-listener/internal/logging"
	"github.com/cashflowly/mpesa-listener/internal/runtime"
)

// CapabilityChecker answers whether the read-SMS capability is granted.
type CapabilityChecker interface {
	CheckCapability(ctx context.Context) (runtime.CapabilityResponse, error)
}

// Probe re-checks the capability on a cron schedule and logs transitions.
type Probe struct {
	checker  CapabilityChecker
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
	known   bool
	granted bool
}

// NewProbe creates a probe. schedule uses standard cron syntax or descriptors
// such as "@every 5m".
func NewProbe(checker CapabilityChecker, schedule string) *Probe {
	return &Probe{
		checker:  checker,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start runs one check immediately, then registers the schedule.
func (p *Probe) Start(ctx context.Context) error {
	if p.checker == nil {
		return errors.New("capability checker is required")
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("probe already started")
	}
	p.started = true
	p.mu.Unlock()

	if _, err := p.cron.AddFunc(p.schedule, func() {
		_, _ = p.RunNow(ctx)
	}); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return fmt.Errorf("register probe schedule %q: %w", p.schedule, err)
	}

	_, _ = p.RunNow(ctx)
	p.cron.Start()
	logging.Logger().Info("capability probe started", "schedule", p.schedule)
	return nil
}

// Stop stops cron and waits for an in-flight check or ctx cancellation.
func (p *Probe) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	doneCtx := p.cron.Stop()
	select {
	case <-doneCtx.Done():
		logging.Logger().Info("capability probe stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one check and records the result. Failed checks leave the
// last known state untouched.
func (p *Probe) RunNow(ctx context.Context) (runtime.CapabilityResponse, error) {
	resp, err := p.checker.CheckCapability(ctx)
	if err != nil {
		logging.Logger().Warn("capability probe failed", "err", err)
		return runtime.CapabilityResponse{}, err
	}

	p.mu.Lock()
	first := !p.known
	changed := p.known && p.granted != resp.Granted
	p.known = true
	p.granted = resp.Granted
	p.mu.Unlock()

	logger := logging.Logger()
	switch {
	case first:
		logger.Info("capability state", "granted", resp.Granted)
	case changed && resp.Granted:
		logger.Info("capability granted")
	case changed:
		logger.Warn("capability revoked; incoming sms will not be read")
	}
	return resp, nil
}

// Last returns the most recent successful observation. known is false until
// the first check succeeds.
func (p *Probe) Last() (granted bool, known bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted, p.known
}
