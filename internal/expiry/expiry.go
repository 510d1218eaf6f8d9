// Package expiry turns lapsed tracking windows into finalization calls. Two
// paths feed the same idempotent entry point: a push listener on Redis
// expired-key notifications and a poll fallback that catches notifications
// lost to disconnects or a server without keyspace events enabled.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/tracker"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// Finalizer closes the session of a plate whose window elapsed. Implemented
// by the tracker core.
type Finalizer interface {
	OnTimerExpire(ctx context.Context, plate string) (tracker.ExpireResult, error)
}

// Service watches for lapsed tracking windows and drives finalization.
type Service struct {
	store        *trackstore.Store
	finalizer    Finalizer
	logger       *slog.Logger
	pollInterval time.Duration
	usePush      bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the expiry service. Start must be called to begin watching.
func New(store *trackstore.Store, finalizer Finalizer, settings *conf.ExpirySettings) *Service {
	logger := logging.ForService("expiry")
	if logger == nil {
		logger = slog.Default().With("service", "expiry")
	}

	return &Service{
		store:        store,
		finalizer:    finalizer,
		logger:       logger,
		pollInterval: settings.PollInterval,
		usePush:      settings.KeyspaceNotifications,
	}
}

// Start launches the push listener and the poll fallback. The push listener
// requires notify-keyspace-events on the server; when enabling it fails the
// poll fallback still covers expiry, just with poll-interval latency.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.usePush {
		if err := s.store.EnableKeyExpiryNotifications(ctx); err != nil {
			s.logger.Warn("could not enable keyspace notifications, relying on poll fallback",
				"error", err)
		}
		s.wg.Add(1)
		go s.listenLoop(ctx)
	}

	s.wg.Add(1)
	go s.pollLoop(ctx)
}

// Stop terminates both loops and waits for them to drain.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// listenLoop consumes expired-key notifications for the store's database.
func (s *Service) listenLoop(ctx context.Context) {
	defer s.wg.Done()

	channel := fmt.Sprintf("__keyevent@%d__:expired", s.store.DB())
	pubsub := s.store.Client().PSubscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	s.logger.Info("expiry push listener started", "channel", channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleExpiredKey(ctx, msg.Payload)
		}
	}
}

// handleExpiredKey finalizes the plate behind an expired timer marker. Other
// expired keys on the same database, the archive entries included, are not
// ours and are skipped.
func (s *Service) handleExpiredKey(ctx context.Context, key string) {
	plate, ok := trackstore.PlateFromTimerKey(key)
	if !ok {
		return
	}

	res, err := s.finalizer.OnTimerExpire(ctx, plate)
	if err != nil {
		s.logger.Error("finalization failed", "plate", plate, "error", err)
		return
	}
	s.logger.Debug("timer expired",
		"plate", plate,
		"action", res.Action,
		"final_status", res.FinalStatus,
	)
}

// pollLoop periodically sweeps for active records whose timer marker is
// gone. Redis removes the marker on expiry, so a record without one is a
// session the push path missed.
func (s *Service) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce runs one sweep. The finalizer re-checks the timer under its
// transaction, so a marker re-armed between the sweep read and the
// finalization is left alone.
func (s *Service) pollOnce(ctx context.Context) {
	plates, err := s.store.ActivePlates(ctx)
	if err != nil {
		s.logger.Warn("expiry sweep failed", "error", err)
		return
	}

	for _, plate := range plates {
		ttl, err := s.store.TimerTTL(ctx, plate)
		if err != nil {
			s.logger.Warn("timer lookup failed", "plate", plate, "error", err)
			continue
		}
		if ttl > 0 {
			continue
		}

		res, err := s.finalizer.OnTimerExpire(ctx, plate)
		if err != nil {
			s.logger.Error("finalization failed", "plate", plate, "error", err)
			continue
		}
		if res.Action != tracker.ActionNoAction {
			s.logger.Debug("swept lapsed session",
				"plate", plate,
				"final_status", res.FinalStatus,
			)
		}
	}
}
