package multicall

import (
	"bytes"
	"fmt"
	"math/big"
)

// FirstBigInt is a DecodeFunc for single integer results.
func FirstBigInt(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	return AsBigInt(values[0])
}

// FirstString is a DecodeFunc for string or bytes32 results.
func FirstString(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	switch v := values[0].(type) {
	case string:
		return v, nil
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), nil
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), nil
	default:
		return nil, fmt.Errorf("unsupported string type %T", values[0])
	}
}

// FirstUint8 is a DecodeFunc for uint8 results such as decimals().
func FirstUint8(values []any) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no values")
	}
	return AsUint8(values[0])
}

func AsBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

// AsUint8 rejects values that do not fit in a uint8.
func AsUint8(value any) (uint8, error) {
	switch value.(type) {
	case uint8, uint16, uint32, uint64, *big.Int:
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
	n, err := AsBigInt(value)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.BitLen() > 8 {
		return 0, fmt.Errorf("value %s overflows uint8", n)
	}
	return uint8(n.Uint64()), nil
}
