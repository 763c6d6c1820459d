package services

import (
	"context"

	"discord-chat-manager/internal/ports"
)

// DefaultPageSize - максимальный размер страницы списочных методов Discord.
const DefaultPageSize = 100

// Keyed - элемент коллекции с курсором пагинации.
type Keyed interface {
	Key() string
}

// FetchFunc загружает страницу после курсора lastID (пустой для первой страницы).
type FetchFunc[T Keyed] func(ctx context.Context, lastID string) ([]T, error)

// Paginate последовательно загружает страницы, пока страница не окажется неполной,
// пустой или пока запрос не завершится ошибкой. Ошибка означает конец коллекции и
// не возвращается. Флаг остановки проверяется перед каждым запросом.
func Paginate[T Keyed](ctx context.Context, stop ports.StopSignal, fetch FetchFunc[T], onBatch func([]T), pageSize int) []T {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	lastID := ""
	for {
		if isStopped(ctx, stop) {
			return all
		}

		page, err := fetch(ctx, lastID)
		if err != nil || len(page) == 0 {
			return all
		}

		all = append(all, page...)
		lastID = page[len(page)-1].Key()
		if onBatch != nil {
			onBatch(page)
		}

		if len(page) < pageSize {
			return all
		}
	}
}
