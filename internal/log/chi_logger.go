package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// ChiLogAdapter адаптирует slog.Logger под middleware.LoggerInterface из chi,
// чтобы строки запросов проходили через маскировщик.
type ChiLogAdapter struct {
	Logger *slog.Logger
}

// Print реализует метод интерфейса middleware.LoggerInterface.
func (a *ChiLogAdapter) Print(v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprint(v...)))
}
