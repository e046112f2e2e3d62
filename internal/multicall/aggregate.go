package multicall

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Caller performs a single eth_call.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Aggregate sends every present call of batch to the aggregator contract in one
// eth_call and decodes the results. It also returns the block the batch was read at.
func Aggregate(ctx context.Context, caller Caller, aggregator common.Address, batch *Batch, block *big.Int) (Results, uint64, error) {
	if caller == nil {
		return nil, 0, fmt.Errorf("multicall: caller is nil")
	}

	parsed, err := AggregatorABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse aggregator abi: %w", err)
	}

	encoded, err := Encode(batch)
	if err != nil {
		return nil, 0, err
	}
	if len(encoded) == 0 {
		return Results{}, 0, nil
	}

	calls := make([]aggregateCall, 0, len(encoded))
	for _, call := range encoded {
		calls = append(calls, aggregateCall{Target: call.Target, CallData: call.CallData})
	}

	data, err := parsed.Pack("aggregate", calls)
	if err != nil {
		return nil, 0, fmt.Errorf("pack aggregate: %w", err)
	}

	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &aggregator, Data: data}, block)
	if err != nil {
		return nil, 0, fmt.Errorf("call aggregate: %w", err)
	}

	values, err := parsed.Unpack("aggregate", resp)
	if err != nil {
		return nil, 0, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(values) != 2 {
		return nil, 0, fmt.Errorf("unpack aggregate: expected 2 values, got %d", len(values))
	}

	blockNumber, err := AsBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate block number: %w", err)
	}
	returnData, ok := values[1].([][]byte)
	if !ok {
		return nil, 0, fmt.Errorf("aggregate return data: unexpected type %T", values[1])
	}

	results, err := Decode(batch, Result{ReturnData: returnData})
	if err != nil {
		return nil, 0, err
	}
	return results, blockNumber.Uint64(), nil
}

// EthBalance reads the native balance of account through the aggregator itself.
func EthBalance(aggregator, account common.Address) *Call {
	return &Call{
		Target:    aggregator,
		Signature: "getEthBalance(address)",
		Params:    []any{account},
		Returns:   []string{"uint256"},
		Decode:    FirstBigInt,
	}
}
