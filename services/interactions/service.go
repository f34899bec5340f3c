// Package interactions records question/answer cycles asynchronously.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/ragqa/internal/redact"
	"github.com/upb/ragqa/models"
	"github.com/upb/ragqa/repositories"
	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("interaction log not started")
	ErrStopped    = errors.New("interaction log stopped")
	ErrBufferFull = errors.New("interaction log buffer full")
)

// DropRecorder counts events discarded because the buffer was full.
type DropRecorder interface {
	RecordInteractionDropped()
}

// Event is a single interaction queued for persistence
type Event struct {
	Interaction *models.Interaction
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
	// InsertTimeout bounds each repository write. Defaults to 5s.
	InsertTimeout time.Duration
	// RedactPII masks personal data in free-text fields before insert.
	RedactPII bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    1000,
		WorkerCount:   2,
		InsertTimeout: 5 * time.Second,
	}
}

// Service persists interactions through a bounded queue and a fixed pool of
// workers. Enqueueing never blocks the request path.
type Service struct {
	repo          repositories.InteractionRepository
	logger        *zap.Logger
	drops         DropRecorder
	eventChan     chan *Event
	workerCount   int
	bufferSize    int
	insertTimeout time.Duration
	redactPII     bool
	wg            sync.WaitGroup

	// mu guards started/stopped and the channel close. Senders hold the
	// read lock so Stop never closes the channel under them.
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewService creates a new interaction log. drops may be nil.
func NewService(repo repositories.InteractionRepository, logger *zap.Logger, cfg Config, drops DropRecorder) *Service {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = def.InsertTimeout
	}

	return &Service{
		repo:          repo,
		logger:        logger,
		drops:         drops,
		eventChan:     make(chan *Event, cfg.BufferSize),
		workerCount:   cfg.WorkerCount,
		bufferSize:    cfg.BufferSize,
		insertTimeout: cfg.InsertTimeout,
		redactPII:     cfg.RedactPII,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("interaction log already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started interaction log",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the queue and waits up to timeout for pending events to be
// written.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping interaction log", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("interaction log stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("interaction log stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *Service) LogEvent(event *Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.acceptingLocked(); err != nil {
		return err
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("interaction log buffer full, dropping event",
			zap.String("interaction_id", event.Interaction.ID.String()),
			zap.String("request_id", event.Interaction.RequestID))
		if s.drops != nil {
			s.drops.RecordInteractionDropped()
		}
		return ErrBufferFull
	}
}

// LogInteraction queues i without blocking.
func (s *Service) LogInteraction(i *models.Interaction) error {
	return s.LogEvent(&Event{Interaction: i})
}

func (s *Service) acceptingLocked() error {
	if !s.started {
		return ErrNotStarted
	}
	if s.stopped {
		return ErrStopped
	}
	return nil
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("interaction worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to persist interaction",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("interaction_id", event.Interaction.ID.String()))
		}
	}

	s.logger.Debug("interaction worker stopped", zap.Int("worker_id", id))
}

func (s *Service) processEvent(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.insertTimeout)
	defer cancel()

	if s.redactPII {
		redactInteraction(event.Interaction)
	}
	return s.repo.Insert(ctx, event.Interaction)
}

func redactInteraction(i *models.Interaction) {
	i.Question = redact.String(i.Question)
	if i.Answer != nil {
		answer := redact.String(*i.Answer)
		i.Answer = &answer
	}
	if i.ErrorMessage != nil {
		msg := redact.String(*i.ErrorMessage)
		i.ErrorMessage = &msg
	}
}

// GetStats returns statistics about the interaction log. Readiness
// reports it.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents interaction log statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}
