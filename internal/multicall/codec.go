package multicall

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrShortReturnData is returned when a batch result has fewer slots than calls.
var ErrShortReturnData = errors.New("multicall: return data shorter than call list")

// DecodeError reports which batch entry failed to decode.
type DecodeError struct {
	Key   string
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("multicall: decode %q (slot %d): %v", e.Key, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodedCall is one (target, calldata) pair of the aggregated call.
type EncodedCall struct {
	Target   common.Address
	CallData []byte
}

// Result is the raw aggregated response.
type Result struct {
	ReturnData [][]byte
}

// Results maps batch keys to decoded values.
type Results map[string]any

// Batch is an insertion-ordered set of named calls. A nil call is an absent
// optional entry and occupies no positional slot on the wire.
type Batch struct {
	calls *orderedmap.OrderedMap[string, *Call]
}

func NewBatch() *Batch {
	return &Batch{calls: orderedmap.New[string, *Call]()}
}

// Add stores call under key. Re-adding a key keeps its original position.
func (b *Batch) Add(key string, call *Call) *Batch {
	b.calls.Set(key, call)
	return b
}

type entry struct {
	key  string
	call *Call
}

// entries is the single place both Encode and Decode derive positions from.
func (b *Batch) entries() []entry {
	out := make([]entry, 0, b.calls.Len())
	for pair := b.calls.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			continue
		}
		out = append(out, entry{key: pair.Key, call: pair.Value})
	}
	return out
}

// Encode produces one EncodedCall per present entry in insertion order.
func Encode(batch *Batch) ([]EncodedCall, error) {
	entries := batch.entries()
	encoded := make([]EncodedCall, 0, len(entries))
	for _, e := range entries {
		data, err := e.call.Pack()
		if err != nil {
			return nil, fmt.Errorf("multicall: encode %q: %w", e.key, err)
		}
		encoded = append(encoded, EncodedCall{Target: e.call.Target, CallData: data})
	}
	return encoded, nil
}

// Decode maps result slots back onto the present entries of batch. An
// optional entry that fails to decode is left out of the results.
func Decode(batch *Batch, result Result) (Results, error) {
	entries := batch.entries()
	out := make(Results, len(entries))
	for i, e := range entries {
		if i >= len(result.ReturnData) {
			return nil, &DecodeError{Key: e.key, Index: i, Err: ErrShortReturnData}
		}
		value, err := e.call.Unpack(result.ReturnData[i])
		if err != nil {
			if e.call.Optional {
				continue
			}
			return nil, &DecodeError{Key: e.key, Index: i, Err: err}
		}
		out[e.key] = value
	}
	return out, nil
}

// Value returns results[key] asserted to T.
func Value[T any](results Results, key string) (T, bool) {
	var zero T
	raw, ok := results[key]
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	return typed, ok
}
