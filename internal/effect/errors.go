package effect

import (
	"errors"
	"fmt"
)

var (
	// ErrHandlerNotFound means a staged query type has no registered handler.
	ErrHandlerNotFound = errors.New("query handler not found")
	// ErrUnknownQueryType means a completion arrived for a query type the state does not fold.
	ErrUnknownQueryType = errors.New("unknown query type")
	// ErrHandlerExists is returned when registering a query type twice.
	ErrHandlerExists = errors.New("query handler already registered")
)

// HandlerPanic wraps a value recovered from a panicking query handler.
type HandlerPanic struct {
	Query Query
	Value any
}

func (e *HandlerPanic) Error() string {
	return fmt.Sprintf("query %s (%s) panicked: %v", e.Query.Type, e.Query.ID, e.Value)
}

// UnknownQuery builds the error HandleQueryResponse implementations return
// for query types they do not recognise.
func UnknownQuery(t QueryType) error {
	return fmt.Errorf("%w: %s", ErrUnknownQueryType, t)
}
