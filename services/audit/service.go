package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/modelgate/models"
	"github.com/modelgate/modelgate/repositories"
	"go.uber.org/zap"
)

// ErrBufferFull is returned by Record when the decision buffer is saturated.
// The decision is dropped rather than stalling the request path.
var ErrBufferFull = errors.New("routing decision buffer full")

// insertTimeout bounds one database write so a slow database cannot pin
// workers forever
const insertTimeout = 5 * time.Second

// Store persists routing decisions asynchronously. Record never blocks the
// request path: decisions queue into a bounded channel and background
// workers write them out.
type Store struct {
	repo        repositories.DecisionRepository
	logger      *zap.Logger
	decisions   chan models.RoutingDecision
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the Store
type Config struct {
	BufferSize  int // Size of the decision buffer channel
	WorkerCount int // Number of concurrent writer goroutines
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1024,
		WorkerCount: 2,
	}
}

// NewStore creates a new Store instance
func NewStore(repo repositories.DecisionRepository, logger *zap.Logger, config Config) *Store {
	return &Store{
		repo:        repo,
		logger:      logger,
		decisions:   make(chan models.RoutingDecision, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background writer goroutines
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("decision store already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started decision store",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop drains the buffer and stops the workers. Decisions already queued
// are written out; the timeout bounds how long the drain may take.
func (s *Store) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("decision store not started")
	}
	s.started = false
	pending := len(s.decisions)
	close(s.decisions)
	s.mu.Unlock()

	s.logger.Info("stopping decision store", zap.Int("pending_decisions", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("decision store stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("decision store stop timeout after %v", timeout)
	}
}

// Record queues a decision for persistence without blocking. When the
// buffer is full the decision is dropped and ErrBufferFull returned; the
// caller decides whether that is worth a metric or a log line.
func (s *Store) Record(decision models.RoutingDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("decision store not started")
	}

	if decision.ID == uuid.Nil {
		decision.ID = uuid.New()
	}

	select {
	case s.decisions <- decision:
		return nil
	default:
		return ErrBufferFull
	}
}

// Stats returns statistics about the store
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:       s.bufferSize,
		PendingDecisions: len(s.decisions),
		WorkerCount:      s.workerCount,
		Started:          s.started,
	}
}

// Stats represents decision store statistics
type Stats struct {
	BufferSize       int
	PendingDecisions int
	WorkerCount      int
	Started          bool
}

// worker drains the decision channel until it is closed
func (s *Store) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("decision writer started", zap.Int("worker_id", id))

	for decision := range s.decisions {
		if err := s.persist(decision); err != nil {
			s.logger.Error("failed to persist routing decision",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", decision.RequestID),
				zap.String("outcome", string(decision.Outcome)))
		}
	}

	s.logger.Debug("decision writer stopped", zap.Int("worker_id", id))
}

// persist writes a single decision
func (s *Store) persist(decision models.RoutingDecision) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, &decision); err != nil {
		return fmt.Errorf("failed to insert routing decision: %w", err)
	}

	return nil
}
