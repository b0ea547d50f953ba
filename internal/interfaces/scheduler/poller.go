package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RefreshTarget is a store the Poller keeps fresh.
type RefreshTarget struct {
	UserID  string
	Refresh func(ctx context.Context) error
}

// Poller periodically queues refreshes for the targets returned by its
// provider. It covers deployments without a change-notification channel.
type Poller struct {
	pool     *WorkerPool
	interval time.Duration
	targets  func() []RefreshTarget
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(pool *WorkerPool, interval time.Duration, targets func() []RefreshTarget, log logrus.FieldLogger) *Poller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		pool:     pool,
		interval: interval,
		targets:  targets,
		log:      log.WithField("component", "poller"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
	p.log.WithField("interval", p.interval).Info("Refresh poller started")
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	targets := p.targets()
	if len(targets) == 0 {
		return
	}
	p.log.WithField("targets", len(targets)).Debug("Polling expense stores")
	for _, t := range targets {
		p.pool.ScheduleRefresh(t.UserID, t.Refresh)
	}
}

// Shutdown stops the loop. Refreshes already queued are left to the pool.
func (p *Poller) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
