package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// StopFlag - разделяемый флаг кооперативной остановки.
// Нулевое значение готово к использованию.
type StopFlag struct {
	v atomic.Bool
}

func (f *StopFlag) Stop()         { f.v.Store(true) }
func (f *StopFlag) Reset()        { f.v.Store(false) }
func (f *StopFlag) Stopped() bool { return f.v.Load() }

// nopReporter отбрасывает все уведомления.
type nopReporter struct{}

func (nopReporter) Notify(domain.Notification)  {}
func (nopReporter) SetModifying(bool)           {}
func (nopReporter) SetProgress(domain.Progress) {}
func (nopReporter) SetStatus(string)            {}

// runtime - общее окружение сервисов ядра одной операции.
type runtime struct {
	reporter  ports.Reporter
	stop      ports.StopSignal
	log       *slog.Logger
	now       func() time.Time
	opTimeout time.Duration
}

func newRuntime(opts []Option) runtime {
	rt := runtime{
		reporter:  nopReporter{},
		stop:      &StopFlag{},
		log:       slog.Default(),
		now:       time.Now,
		opTimeout: defaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(&rt)
	}
	return rt
}

// Option - функциональная опция для сервисов ядра.
type Option func(*runtime)

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) Option {
	return func(rt *runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithReporter устанавливает приемник статуса, прогресса и уведомлений.
func WithReporter(r ports.Reporter) Option {
	return func(rt *runtime) {
		if r != nil {
			rt.reporter = r
		}
	}
}

// WithStopSignal устанавливает флаг остановки.
func WithStopSignal(s ports.StopSignal) Option {
	return func(rt *runtime) {
		if s != nil {
			rt.stop = s
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(rt *runtime) {
		if now != nil {
			rt.now = now
		}
	}
}

// stopped объединяет отмену контекста и флаг остановки.
func (rt runtime) stopped(ctx context.Context) bool {
	return isStopped(ctx, rt.stop)
}

func isStopped(ctx context.Context, stop ports.StopSignal) bool {
	if ctx.Err() != nil {
		return true
	}
	return stop != nil && stop.Stopped()
}

func (rt runtime) notify(message string, timeout time.Duration) {
	rt.reporter.Notify(domain.Notification{Message: message, Timeout: timeout})
}

func (rt runtime) status(s string) {
	rt.reporter.SetStatus(s)
}
