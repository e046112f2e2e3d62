package multicall

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DecodeFunc turns positional ABI values into the value stored under a call's key.
type DecodeFunc func(values []any) (any, error)

// Call describes one contract read inside a batch.
type Call struct {
	Target    common.Address
	Signature string
	Params    []any
	Returns   []string
	// Fallback is a second result layout tried when Returns does not
	// unpack, e.g. bytes32 for tokens predating string metadata.
	Fallback []string
	// Optional entries that fail to decode are left absent instead of
	// failing the whole batch.
	Optional bool
	Decode   DecodeFunc
}

// Pack returns the selector-prefixed calldata for the call.
func (c *Call) Pack() ([]byte, error) {
	name, inputs, err := parseSignature(c.Signature)
	if err != nil {
		return nil, err
	}
	args, err := newArguments(inputs)
	if err != nil {
		return nil, fmt.Errorf("%s inputs: %w", name, err)
	}
	packed, err := args.Pack(c.Params...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}

	selector := Selector(name, inputs)
	data := make([]byte, 0, len(selector)+len(packed))
	data = append(data, selector...)
	return append(data, packed...), nil
}

// Unpack decodes raw return data according to Returns, then Fallback, and
// applies Decode.
func (c *Call) Unpack(data []byte) (any, error) {
	values, err := unpackAs(c.Returns, data)
	if err != nil && len(c.Fallback) > 0 {
		if fallback, fallbackErr := unpackAs(c.Fallback, data); fallbackErr == nil {
			values, err = fallback, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", c.Signature, err)
	}
	if c.Decode != nil {
		return c.Decode(values)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// Selector returns the 4-byte function selector for name(types...).
func Selector(name string, types []string) []byte {
	canonical := name + "(" + strings.Join(types, ",") + ")"
	return crypto.Keccak256([]byte(canonical))[:4]
}

func parseSignature(signature string) (string, []string, error) {
	signature = strings.TrimSpace(signature)
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return "", nil, fmt.Errorf("invalid signature %q", signature)
	}
	name := strings.TrimSpace(signature[:open])
	inner := strings.TrimSpace(signature[open+1 : len(signature)-1])
	if inner == "" {
		return name, nil, nil
	}
	if strings.ContainsAny(inner, "()") {
		return "", nil, fmt.Errorf("tuple parameters are not supported: %q", signature)
	}

	parts := strings.Split(inner, ",")
	types := make([]string, 0, len(parts))
	for _, part := range parts {
		// drop optional parameter names ("address owner")
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return "", nil, fmt.Errorf("empty parameter in %q", signature)
		}
		types = append(types, fields[0])
	}
	return name, types, nil
}

func unpackAs(types []string, data []byte) ([]any, error) {
	args, err := newArguments(types)
	if err != nil {
		return nil, fmt.Errorf("result types: %w", err)
	}
	return args.Unpack(data)
}

func newArguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}
