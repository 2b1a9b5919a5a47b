/*
scheduler.go - Periodic ledger consistency check

PURPOSE:
  Re-derives every cached or running balance from its log at a fixed
  interval and logs any drift. The check only reads; repairing the contact
  balance cache is an explicit admin action (POST /api/admin/rebuild-balances).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - The most recent report is kept for GET /api/admin/consistency?cached=true

CONFIGURATION:
  - CheckInterval: CONSISTENCY_CHECK_INTERVAL (default: 1 hour; 0 disables)

USAGE:
  scheduler := NewConsistencyScheduler(engine, logger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - gold/engine.go: VerifyConsistency
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/config"
	"github.com/warp/gold-ledger/gold"
)

// Verifier is the engine's consistency check.
type Verifier interface {
	VerifyConsistency(ctx context.Context) (gold.ConsistencyReport, error)
}

// ConsistencyScheduler runs the consistency check periodically.
type ConsistencyScheduler struct {
	Verifier      Verifier
	CheckInterval time.Duration
	Timeout       time.Duration

	log    *logrus.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *gold.ConsistencyReport
}

func NewConsistencyScheduler(v Verifier, logger *logrus.Logger, interval time.Duration) *ConsistencyScheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ConsistencyScheduler{
		Verifier:      v,
		CheckInterval: interval,
		Timeout:       time.Minute,
		log:           logger,
	}
}

// Start begins the scheduler. A non-positive interval leaves it disabled.
func (cs *ConsistencyScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.CheckInterval <= 0 {
		cs.log.WithField("module", "scheduler").Info("consistency check disabled")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)
	go cs.run(cs.ticker, cs.stop)

	cs.log.WithFields(logrus.Fields{"module": "scheduler", "interval": cs.CheckInterval.String()}).Info("consistency check started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (cs *ConsistencyScheduler) Stop() {
	cs.mu.Lock()
	if cs.ticker == nil {
		cs.mu.Unlock()
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.ticker = nil
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.log.WithField("module", "scheduler").Info("consistency check stopped")
}

// LastReport returns the most recent report, or nil before the first run.
func (cs *ConsistencyScheduler) LastReport() *gold.ConsistencyReport {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.last
}

func (cs *ConsistencyScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	cs.RunNow()
	for {
		select {
		case <-ticker.C:
			cs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one check synchronously.
func (cs *ConsistencyScheduler) RunNow() (gold.ConsistencyReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cs.Timeout)
	defer cancel()

	report, err := cs.Verifier.VerifyConsistency(ctx)
	if err != nil {
		config.LogError(cs.log, "scheduler", "RunNow", nil, err)
		return gold.ConsistencyReport{}, err
	}

	cs.mu.Lock()
	cs.last = &report
	cs.mu.Unlock()

	entry := cs.log.WithFields(logrus.Fields{
		"module":        "scheduler",
		"contact_drift": len(report.Contacts),
		"weight_drift":  len(report.Weights),
		"bank_drift":    len(report.Banks),
	})
	if report.OK() {
		entry.Info("ledgers consistent")
	} else {
		entry.Warn("ledger drift detected")
	}
	return report, nil
}
