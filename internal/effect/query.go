package effect

import (
	"github.com/google/uuid"
)

// CommandType names a command. Namespaced names use a "." separator
// ("Market.GetDepositMarketResponse") for grouping only.
type CommandType string

// QueryType names a query and selects its handler.
type QueryType string

// Reserved command types handled by the reducer itself.
const (
	TypeQueryCompleted CommandType = "Effect.QueryCompleted"
	TypeStageQueries   CommandType = "Effect.StageQueries"
)

// Command is a synchronous state transition request.
type Command interface {
	CommandType() CommandType
}

// Query is a pending unit of asynchronous work. ID is assigned by Stage.
type Query struct {
	ID      string
	Type    QueryType
	Payload any
}

// Completion carries the outcome of one query back into the reducer.
// Exactly one of Err and Response is meaningful.
type Completion struct {
	Query    Query
	Err      error
	Response any
}

func (Completion) CommandType() CommandType { return TypeQueryCompleted }

// StageQueries moves a staged batch into the pending set.
type StageQueries struct {
	Batch *Batch
}

func (StageQueries) CommandType() CommandType { return TypeStageQueries }

// Batch is a group of queries staged by one transition. Stores compare
// batches by pointer, never by content.
type Batch struct {
	Queries []Query
}

// Queue is the effect bookkeeping every reducer-owned state carries.
type Queue struct {
	// Pending lists queries handed to the runner and not yet completed.
	Pending []Query
	// Staged is the last batch staged. It is a change signal: carrying the
	// same pointer forward never re-runs it.
	Staged *Batch

	// open is the batch staged during the reduction in progress.
	open *Batch
}

// Stateful is implemented by states the reducer and store can drive.
type Stateful[S any] interface {
	QueueState() Queue
	WithQueue(Queue) S
}

var newID = uuid.NewString

// Stage assigns ids to queries and attaches them as a new batch. Stage calls
// made within one reduction accumulate into the same batch.
func Stage(q Queue, queries ...Query) Queue {
	if len(queries) == 0 {
		return q
	}

	staged := make([]Query, 0, len(queries))
	if q.open != nil && q.open == q.Staged {
		staged = append(staged, q.Staged.Queries...)
	}
	for _, query := range queries {
		if query.ID == "" {
			query.ID = newID()
		}
		staged = append(staged, query)
	}

	batch := &Batch{Queries: staged}
	q.Staged = batch
	q.open = batch
	return q
}

// HasPending reports whether a query of type t is in flight.
func (q Queue) HasPending(t QueryType) bool {
	for _, query := range q.Pending {
		if query.Type == t {
			return true
		}
	}
	return false
}

// IsPending reports whether the query id is in flight.
func (q Queue) IsPending(id string) bool {
	for _, query := range q.Pending {
		if query.ID == id {
			return true
		}
	}
	return false
}

func retire(q Queue, id string) Queue {
	if !q.IsPending(id) {
		return q
	}
	pending := make([]Query, 0, len(q.Pending)-1)
	for _, query := range q.Pending {
		if query.ID != id {
			pending = append(pending, query)
		}
	}
	q.Pending = pending
	return q
}

func promote(q Queue, batch *Batch) Queue {
	if batch == nil || len(batch.Queries) == 0 {
		return q
	}
	pending := make([]Query, 0, len(q.Pending)+len(batch.Queries))
	pending = append(pending, q.Pending...)
	for _, query := range batch.Queries {
		if q.IsPending(query.ID) {
			continue
		}
		pending = append(pending, query)
	}
	q.Pending = pending
	return q
}
