package services

import (
	"context"
	"fmt"
	"time"
)

// defaultOperationTimeout ограничивает один вызов API вместе с повторами при 429.
const defaultOperationTimeout = time.Minute

// WithOperationTimeout устанавливает таймаут для одной операции API.
func WithOperationTimeout(d time.Duration) Option {
	return func(rt *runtime) {
		if d > 0 {
			rt.opTimeout = d
		}
	}
}

// executeOperation выполняет один вызов API с таймаутом операции и журналированием.
// Ошибка возвращается вызывающей стороне, которая решает, пропустить элемент или уведомить.
func executeOperation[T any](ctx context.Context, rt runtime, logArgs []any, fn func(ctx context.Context) (T, error)) (T, error) {
	timeout := rt.opTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	res, err := fn(opCtx)
	cancel()

	if err == nil {
		rt.log.DebugContext(ctx, "API operation executed successfully", logArgs...)
		return res, nil
	}

	args := make([]any, 0, len(logArgs)+2)
	args = append(args, logArgs...)
	args = append(args, "error", err)
	rt.log.WarnContext(ctx, "API operation failed", args...)

	var zero T
	return zero, fmt.Errorf("операция API завершилась с ошибкой: %w", err)
}

// executeAction - вариант executeOperation для вызовов без результата.
func executeAction(ctx context.Context, rt runtime, logArgs []any, fn func(ctx context.Context) error) error {
	_, err := executeOperation(ctx, rt, logArgs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
