package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flexype/inventory-reservation/internal/service"
)

// ReservationEngine is the slice of the reservation service the sweeper
// drives: scanning the expiry index and finalising past-due holds.
type ReservationEngine interface {
	DueReservations(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Expire(ctx context.Context, reservationID string) error
}

// Sweeper reclaims expired reservations on a fixed cadence. It is the only
// component that deletes records based on time. Because expire is atomic and
// a no-op on absent records, restarting the sweeper never double-restores
// stock: the first tick simply catches up on everything past due.
type Sweeper struct {
	engine    ReservationEngine
	interval  time.Duration
	batchSize int64

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a Sweeper with the given tick interval and per-tick
// batch cap.
func NewSweeper(engine ReservationEngine, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		engine:    engine,
		interval:  interval,
		batchSize: int64(batchSize),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("sweeper already running")
	}
	s.running = true
	s.mu.Unlock()

	log.Info().
		Dur("interval", s.interval).
		Int64("batch_size", s.batchSize).
		Msg("starting expiry sweeper")

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts the sweep loop and waits for an in-flight tick to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	log.Info().Msg("expiry sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately so a restart catches up without waiting a full tick.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep finalises one batch of past-due reservations.
func (s *Sweeper) sweep(ctx context.Context) {
	due, err := s.engine.DueReservations(ctx, time.Now(), s.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to scan expiry index")
		return
	}
	if len(due) == 0 {
		return
	}

	log.Info().Int("count", len(due)).Msg("processing expired reservations")

	expired := 0
	for _, id := range due {
		if err := s.engine.Expire(ctx, id); err != nil {
			if errors.Is(err, service.ErrAlreadyTerminal) {
				// Confirm or cancel won the race; nothing to do.
				continue
			}
			log.Error().Err(err).Str("reservation_id", id).Msg("failed to expire reservation")
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Info().Int("expired", expired).Msg("sweep complete")
	}
}
