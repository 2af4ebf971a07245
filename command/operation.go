// Package command maps textual scale operation tokens to float operations.
package command

import (
	"errors"
	"math"
	"strings"
)

var (
	// ErrInvalidOperation is returned for tokens outside the supported set.
	ErrInvalidOperation = errors.New("command: invalid operation")
	// ErrDivisionByZero is returned when divide receives a zero operand.
	ErrDivisionByZero = errors.New("command: division by zero")
)

// Operation combines the current value with an operand.
type Operation func(current, operand float32) (float32, error)

// Operation tokens accepted by Parse.
const (
	OpSet      = "set"
	OpAdd      = "add"
	OpSubtract = "subtract"
	OpMultiply = "multiply"
	OpDivide   = "divide"
	OpPower    = "power"
)

var suggestions = []string{OpSet, OpAdd, OpSubtract, OpMultiply, OpDivide, OpPower}

// Suggestions returns the supported tokens in canonical order.
func Suggestions() []string {
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out
}

// Parse resolves token to its operation.
func Parse(token string) (Operation, error) {
	switch token {
	case OpSet:
		return func(_, operand float32) (float32, error) {
			return operand, nil
		}, nil
	case OpAdd:
		return func(current, operand float32) (float32, error) {
			return current + operand, nil
		}, nil
	case OpSubtract:
		return func(current, operand float32) (float32, error) {
			return current - operand, nil
		}, nil
	case OpMultiply:
		return func(current, operand float32) (float32, error) {
			return current * operand, nil
		}, nil
	case OpDivide:
		return func(current, operand float32) (float32, error) {
			if operand == 0 {
				return 0, ErrDivisionByZero
			}
			return current / operand, nil
		}, nil
	case OpPower:
		return func(current, operand float32) (float32, error) {
			return float32(math.Pow(float64(current), float64(operand))), nil
		}, nil
	default:
		return nil, ErrInvalidOperation
	}
}

// ParseLeading reads the operation token at the start of input, up to the
// first space, and returns the unread remainder.
func ParseLeading(input string) (Operation, string, error) {
	if input == "" {
		return nil, input, ErrInvalidOperation
	}
	token, rest := input, ""
	if idx := strings.IndexByte(input, ' '); idx >= 0 {
		token, rest = input[:idx], input[idx:]
	}
	op, err := Parse(token)
	if err != nil {
		return nil, input, err
	}
	return op, rest, nil
}

// Apply parses token and applies it in one step.
func Apply(token string, current, operand float32) (float32, error) {
	op, err := Parse(token)
	if err != nil {
		return 0, err
	}
	return op(current, operand)
}
