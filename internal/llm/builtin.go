package llm

import (
	"context"
	"errors"
	"time"
)

// BinaryArgs holds two operands.
type BinaryArgs struct {
	A float64 `json:"a" jsonschema:"first operand"`
	B float64 `json:"b" jsonschema:"second operand"`
}

// SquareArgs holds one operand.
type SquareArgs struct {
	X float64 `json:"x" jsonschema:"number to square"`
}

type noArgs struct{}

// ErrDivisionByZero is reported by the divide tool.
var ErrDivisionByZero = errors.New("division by zero")

// BuiltinTools returns the demo tools available to the chat command:
// current_date, add, square and divide. now supplies the clock.
func BuiltinTools(now func() time.Time) []*Tool {
	if now == nil {
		now = time.Now
	}
	return []*Tool{
		MustNewTool("current_date", "Get the current date (YYYY-MM-DD)", func(context.Context, noArgs) (any, error) {
			return now().Format("2006-01-02"), nil
		}),
		MustNewTool("add", "Add two numbers", func(_ context.Context, a BinaryArgs) (any, error) {
			return a.A + a.B, nil
		}),
		MustNewTool("square", "Square a number", func(_ context.Context, a SquareArgs) (any, error) {
			return a.X * a.X, nil
		}),
		MustNewTool("divide", "Divide a by b", func(_ context.Context, a BinaryArgs) (any, error) {
			if a.B == 0 {
				return nil, ErrDivisionByZero
			}
			return a.A / a.B, nil
		}),
	}
}
