package effect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lockScope/internal/metrics"
)

// Runner executes the staged batch of a state through a Registry.
type Runner[S Stateful[S]] struct {
	Registry *Registry[S]
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Run invokes the handler of every query in state's staged batch, one at a
// time in staging order, and dispatches a Completion for each. Handler errors
// and panics become Completion.Err and never stop the batch. A missing
// handler or a failing dispatch aborts the batch and is returned.
func (r *Runner[S]) Run(ctx context.Context, state S, dispatch Dispatch) error {
	batch := state.QueueState().Staged
	if batch == nil {
		return nil
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, query := range batch.Queries {
		handler, err := r.Registry.Lookup(query.Type)
		if err != nil {
			r.Metrics.Error("handler_not_found")
			return err
		}

		start := time.Now()
		response, err := invoke(ctx, handler, HandlerContext[S]{
			State:    state,
			Query:    query,
			Dispatch: dispatch,
		})
		r.Metrics.ObserveQuery(string(query.Type), err != nil, time.Since(start))

		completion := Completion{Query: query}
		if err != nil {
			logger.Warn("query failed",
				zap.String("type", string(query.Type)),
				zap.String("id", query.ID),
				zap.Error(err),
			)
			completion.Err = err
		} else {
			logger.Debug("query complete",
				zap.String("type", string(query.Type)),
				zap.String("id", query.ID),
				zap.Duration("took", time.Since(start)),
			)
			completion.Response = response
		}

		if err := dispatch(completion); err != nil {
			return err
		}
	}
	return nil
}

func invoke[S any](ctx context.Context, handler Handler[S], hc HandlerContext[S]) (response any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			response = nil
			err = &HandlerPanic{Query: hc.Query, Value: recovered}
		}
	}()
	return handler(ctx, hc)
}
