// Package cleanup enforces retention policy in the background: transparency
// entries past the retention window are pruned from the log and acknowledged
// inter-agent messages past their TTL are swept off the bus.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/polis-ai/polis/pkg/config"
)

// LogPruner deletes transparency entries older than the retention window and
// reports how many were removed.
type LogPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// MessageSweeper drops acknowledged messages published before the cutoff and
// reports how many were removed.
type MessageSweeper interface {
	SweepAcknowledged(cutoff time.Time) int
}

// Service periodically enforces retention policy:
//   - Prunes transparency entries past the retention window
//   - Sweeps acknowledged inter-agent messages past their TTL
//
// Both sweeps are idempotent; a failed prune is retried on the next tick.
type Service struct {
	cfg    *config.RetentionConfig
	log    LogPruner
	bus    MessageSweeper
	logger *slog.Logger
	clock  func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wires the sweeper to its targets. A nil log or bus skips that
// sweep.
func NewService(cfg *config.RetentionConfig, log LogPruner, bus MessageSweeper) *Service {
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		logger: slog.Default().With("component", "cleanup"),
		clock:  time.Now,
	}
}

// Start launches the background sweep loop. Starting twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Retention sweeper started",
		"log_retention_days", s.cfg.LogRetentionDays,
		"message_ttl", s.cfg.MessageTTL,
		"sweep_interval", s.cfg.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Retention sweeper stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs both retention passes once.
func (s *Service) sweep(ctx context.Context) {
	s.pruneLog(ctx)
	s.sweepMessages()
}

func (s *Service) pruneLog(ctx context.Context) {
	if s.log == nil || s.cfg.LogRetentionDays <= 0 {
		return
	}
	retention := time.Duration(s.cfg.LogRetentionDays) * 24 * time.Hour
	pruned, err := s.log.Prune(ctx, retention)
	if err != nil {
		s.logger.Error("Retention: transparency log prune failed", "error", err)
		return
	}
	if pruned > 0 {
		s.logger.Info("Retention: pruned transparency entries", "count", pruned)
	}
}

func (s *Service) sweepMessages() {
	if s.bus == nil {
		return
	}
	swept := s.bus.SweepAcknowledged(s.clock().UTC().Add(-s.cfg.MessageTTL))
	if swept > 0 {
		s.logger.Info("Retention: swept acknowledged messages", "count", swept)
	}
}
