package cel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"replybot/pkg/models"
)

// Evaluator runs boolean rule conditions against inbound chat events.
// Available variables: text, sender_id, sender_name, conversation_id,
// message_id, timestamp, hour (0-23) and weekday (1=Mon..7=Sun).
type Evaluator struct {
	env      *cel.Env
	location *time.Location
	programs sync.Map // expression -> compiled
}

// compiled caches the outcome of compiling one expression, failures
// included, so a broken rule condition is only parsed once.
type compiled struct {
	program cel.Program
	err     error
}

func NewEvaluator(location *time.Location) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("sender_id", cel.StringType),
		cel.Variable("sender_name", cel.StringType),
		cel.Variable("conversation_id", cel.StringType),
		cel.Variable("message_id", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	if location == nil {
		location = time.Local
	}

	return &Evaluator{env: env, location: location}, nil
}

// ValidateCondition checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (cel.Program, error) {
	if c, ok := e.programs.Load(expression); ok {
		entry := c.(compiled)
		return entry.program, entry.err
	}

	program, err := e.build(expression)
	e.programs.Store(expression, compiled{program: program, err: err})
	return program, err
}

func (e *Evaluator) build(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return program, nil
}

// EvaluateCondition reports whether event satisfies expression.
func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, event models.InboundEvent) (bool, error) {
	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	local := ts.In(e.location)

	result, _, err := program.ContextEval(ctx, map[string]interface{}{
		"text":            event.MessageText,
		"sender_id":       event.SenderID,
		"sender_name":     event.SenderDisplayName,
		"conversation_id": event.ConversationID,
		"message_id":      event.MessageID,
		"timestamp":       ts,
		"hour":            int64(local.Hour()),
		"weekday":         int64(models.ISOWeekday(local)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return matched, nil
}
