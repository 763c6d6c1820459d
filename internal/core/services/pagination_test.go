package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"discord-chat-manager/internal/domain"
)

func pageOf(start, n int) []domain.Message {
	out := make([]domain.Message, n)
	for i := range out {
		out[i] = domain.Message{ID: fmt.Sprintf("%d", start+i)}
	}
	return out
}

func TestPaginate(t *testing.T) {
	t.Run("загружает страницы до неполной", func(t *testing.T) {
		sizes := []int{100, 100, 37}
		var cursors []string
		calls := 0
		fetch := func(_ context.Context, lastID string) ([]domain.Message, error) {
			cursors = append(cursors, lastID)
			page := pageOf(calls*100, sizes[calls])
			calls++
			return page, nil
		}
		batches := 0

		all := Paginate(context.Background(), &StopFlag{}, fetch, func([]domain.Message) { batches++ }, 100)

		assert.Len(t, all, 237)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 3, batches)
		assert.Equal(t, []string{"", "99", "199"}, cursors)
	})

	t.Run("остановка перед вторым запросом", func(t *testing.T) {
		stop := &StopFlag{}
		calls := 0
		fetch := func(_ context.Context, _ string) ([]domain.Message, error) {
			calls++
			stop.Stop()
			return pageOf(0, 100), nil
		}

		all := Paginate(context.Background(), stop, fetch, nil, 100)

		assert.Len(t, all, 100)
		assert.Equal(t, 1, calls)
	})

	t.Run("ошибка завершает коллекцию без ошибки", func(t *testing.T) {
		calls := 0
		fetch := func(_ context.Context, _ string) ([]domain.Message, error) {
			calls++
			if calls == 2 {
				return nil, errFake
			}
			return pageOf(0, 100), nil
		}

		all := Paginate(context.Background(), &StopFlag{}, fetch, nil, 100)

		assert.Len(t, all, 100)
		assert.Equal(t, 2, calls)
	})

	t.Run("пустая первая страница", func(t *testing.T) {
		fetch := func(_ context.Context, _ string) ([]domain.Message, error) { return nil, nil }
		assert.Empty(t, Paginate(context.Background(), nil, fetch, nil, 0))
	})

	t.Run("отмененный контекст не делает запросов", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		fetch := func(_ context.Context, _ string) ([]domain.Message, error) {
			calls++
			return pageOf(0, 1), nil
		}

		assert.Empty(t, Paginate(ctx, &StopFlag{}, fetch, nil, 100))
		assert.Zero(t, calls)
	})
}
