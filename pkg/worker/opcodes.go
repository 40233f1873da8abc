package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
)

// OpTestDelay sleeps for "duration" seconds, "repeat" times
const OpTestDelay = "OP_TEST_DELAY"

func testDelay(ctx context.Context, op types.OpCode, feedback Feedback) (interface{}, error) {
	duration, err := numberParam(op, "duration", 0)
	if err != nil {
		return nil, err
	}
	if duration < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}
	repeat, err := numberParam(op, "repeat", 0)
	if err != nil {
		return nil, err
	}

	rounds := int(repeat)
	if rounds < 1 {
		rounds = 1
	}
	d := time.Duration(duration * float64(time.Second))
	for i := 0; i < rounds; i++ {
		if rounds > 1 {
			feedback(fmt.Sprintf("Test delay iteration %d/%d", i+1, rounds))
		}
		feedback(fmt.Sprintf("Sleeping for %v", d))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted: %w", ctx.Err())
		}
	}
	return true, nil
}

// numberParam reads a numeric opcode parameter. Opcodes arrive as JSON or
// YAML so both float and integer forms are accepted.
func numberParam(op types.OpCode, name string, fallback float64) (float64, error) {
	v, ok := op[name]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("parameter %s must be a number, got %T", name, v)
}
