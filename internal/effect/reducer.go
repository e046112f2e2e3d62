package effect

// Reducer is the synchronous transition function of a Stateful state.
//
// HandleCommand and HandleQueryResponse may stage queries with Stage but must
// not edit Queue.Pending; the pending set is maintained here only.
type Reducer[S Stateful[S]] struct {
	HandleCommand       func(s S, cmd Command) S
	HandleQueryResponse func(s S, c Completion) (S, error)
}

// Reduce applies cmd to s. The only error is a completion whose query type
// HandleQueryResponse does not know, which is a wiring defect.
func (r Reducer[S]) Reduce(s S, cmd Command) (S, error) {
	var next S
	switch ev := cmd.(type) {
	case Completion:
		folded, err := r.fold(s, ev)
		if err != nil {
			return s, err
		}
		next = Retire(folded, ev.Query.ID)
	case StageQueries:
		next = s.WithQueue(promote(s.QueueState(), ev.Batch))
	default:
		if r.HandleCommand == nil {
			return s, nil
		}
		next = r.HandleCommand(s, cmd)
	}
	return closeBatch(next), nil
}

// fold merges a completion into domain state. It runs before Retire so that
// a fold which stages follow-up queries is retired on its own output.
func (r Reducer[S]) fold(s S, c Completion) (S, error) {
	if r.HandleQueryResponse == nil {
		return s, nil
	}
	return r.HandleQueryResponse(s, c)
}

// Retire removes the query id from the pending set of s.
func Retire[S Stateful[S]](s S, id string) S {
	q := s.QueueState()
	if !q.IsPending(id) {
		return s
	}
	return s.WithQueue(retire(q, id))
}

func closeBatch[S Stateful[S]](s S) S {
	q := s.QueueState()
	if q.open == nil {
		return s
	}
	q.open = nil
	return s.WithQueue(q)
}
