package effect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dispatch feeds a command back into the store.
type Dispatch func(Command) error

// HandlerContext is what a query handler sees: the state snapshot the batch
// was staged in, its own query and a way to dispatch further commands.
type HandlerContext[S any] struct {
	State    S
	Query    Query
	Dispatch Dispatch
}

// Handler executes one query and returns its response.
type Handler[S any] func(ctx context.Context, hc HandlerContext[S]) (any, error)

// Registry maps query types to handlers. It holds no state of its own.
type Registry[S any] struct {
	mu       sync.RWMutex
	handlers map[QueryType]Handler[S]
}

func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{handlers: make(map[QueryType]Handler[S])}
}

func (r *Registry[S]) Register(t QueryType, handler Handler[S]) error {
	if strings.TrimSpace(string(t)) == "" {
		return fmt.Errorf("query type is required")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s is nil", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, t)
	}
	r.handlers[t] = handler
	return nil
}

func (r *Registry[S]) MustRegister(t QueryType, handler Handler[S]) {
	if err := r.Register(t, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for t or ErrHandlerNotFound.
func (r *Registry[S]) Lookup(t QueryType) (Handler[S], error) {
	r.mu.RLock()
	handler, ok := r.handlers[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, t)
	}
	return handler, nil
}

// Types lists the registered query types in sorted order.
func (r *Registry[S]) Types() []QueryType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]QueryType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
