package effect

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"lockScope/internal/metrics"
)

// StoreConfig holds the optional collaborators of a Store.
type StoreConfig struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnError receives runner failures (missing handlers, unknown query
	// types). They indicate wiring defects and are never retried.
	OnError func(error)
}

// Store owns the current state. Every Dispatch reduces synchronously; a newly
// staged batch is promoted to pending at once and run on its own goroutine,
// its completions re-entering Dispatch.
type Store[S Stateful[S]] struct {
	ctx     context.Context
	reducer Reducer[S]
	runner  *Runner[S]
	logger  *zap.Logger
	metrics *metrics.Metrics
	onError func(error)

	mu        sync.Mutex
	state     S
	listeners []func(S)

	// notifications are delivered in reduction order by one drainer at a time
	notifications []S
	notifying     bool

	inflight int
	idle     chan struct{}
}

// NewStore builds a store. ctx bounds every query handler it starts.
func NewStore[S Stateful[S]](ctx context.Context, initial S, reducer Reducer[S], registry *Registry[S], cfg StoreConfig) *Store[S] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onError := cfg.OnError
	if onError == nil {
		onError = func(error) {}
	}
	return &Store[S]{
		ctx:     ctx,
		reducer: reducer,
		runner:  &Runner[S]{Registry: registry, Logger: logger, Metrics: cfg.Metrics},
		logger:  logger,
		metrics: cfg.Metrics,
		onError: onError,
		state:   initial,
		idle:    closedChan(),
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// State returns the current state.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called with the new state after every reduction.
func (s *Store[S]) Subscribe(fn func(S)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Dispatch reduces cmd into the current state.
func (s *Store[S]) Dispatch(cmd Command) error {
	s.mu.Lock()
	prev := s.state
	next, err := s.reducer.Reduce(prev, cmd)
	if err != nil {
		s.mu.Unlock()
		s.metrics.Error("reduce")
		return err
	}
	s.state = next
	s.notifications = append(s.notifications, next)
	s.mu.Unlock()

	s.metrics.Dispatched(string(cmd.CommandType()))
	s.metrics.SetPending(len(next.QueueState().Pending))
	s.notify()

	batch := next.QueueState().Staged
	if batch == nil || batch == prev.QueueState().Staged {
		return nil
	}

	if err := s.Dispatch(StageQueries{Batch: batch}); err != nil {
		return err
	}

	// run exactly this batch even if another dispatch staged a newer one meanwhile
	q := next.QueueState()
	q.Staged = batch
	snapshot := next.WithQueue(q)

	s.begin()
	go func() {
		defer s.end()
		if err := s.runner.Run(s.ctx, snapshot, s.Dispatch); err != nil {
			s.logger.Error("query batch aborted", zap.Int("queries", len(batch.Queries)), zap.Error(err))
			s.onError(err)
		}
	}()
	return nil
}

// notify hands queued states to the listeners. A dispatch that finds another
// goroutine already notifying leaves its state on the queue for that drainer,
// so listeners observe states in the order they were reduced.
func (s *Store[S]) notify() {
	s.mu.Lock()
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	for len(s.notifications) > 0 {
		state := s.notifications[0]
		s.notifications = s.notifications[1:]
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()
		for _, fn := range listeners {
			fn(state)
		}
		s.mu.Lock()
	}
	s.notifying = false
	s.mu.Unlock()
}

func (s *Store[S]) begin() {
	s.mu.Lock()
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
	s.mu.Unlock()
}

func (s *Store[S]) end() {
	s.mu.Lock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
	s.mu.Unlock()
}

// Wait blocks until no batch is running or ctx is done. It may race Dispatch
// freely; a batch started after Wait returned is not waited for.
func (s *Store[S]) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.idle
		s.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		settled := s.inflight == 0
		s.mu.Unlock()
		if settled {
			return nil
		}
	}
}
