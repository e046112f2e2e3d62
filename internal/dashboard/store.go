package dashboard

import (
	"context"

	"lockScope/internal/effect"
)

// Options wires a dashboard store.
type Options struct {
	Env     *Env
	Reducer ReducerConfig
	Store   effect.StoreConfig
}

// NewStore builds the dashboard store starting from an empty state.
func NewStore(ctx context.Context, opts Options) (*effect.Store[State], error) {
	registry, err := NewRegistry(opts.Env)
	if err != nil {
		return nil, err
	}
	if opts.Reducer.Now == nil && opts.Env.Now != nil {
		opts.Reducer.Now = opts.Env.Now
	}
	return effect.NewStore(ctx, State{}, NewReducer(opts.Reducer), registry, opts.Store), nil
}
