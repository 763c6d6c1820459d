package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStore(t *testing.T) {
	t.Run("Создание нового хранилища кэша", func(t *testing.T) {
		cs := NewCacheStore(0)
		assert.NotNil(t, cs)
		assert.NotNil(t, cs.cache)
	})

	t.Run("Запись и чтение из кэша", func(t *testing.T) {
		cs := NewCacheStore(0)
		url := "https://cdn.discordapp.com/emojis/1.png"
		data := []byte("png")

		cs.Put(url, data, time.Minute)

		got, found := cs.Get(url)
		require.True(t, found)
		assert.Equal(t, data, got)

		items, size := cs.Stats()
		assert.Equal(t, 1, items)
		assert.Equal(t, int64(3), size)
	})

	t.Run("Чтение несуществующего ключа", func(t *testing.T) {
		cs := NewCacheStore(0)
		_, found := cs.Get("non_existent_key")
		assert.False(t, found)
	})

	t.Run("Чтение просроченного ключа", func(t *testing.T) {
		cs := NewCacheStore(0)
		cs.Put("expired", []byte("x"), -time.Second)

		_, found := cs.Get("expired")
		assert.False(t, found)
	})

	t.Run("Перезапись не удваивает объем", func(t *testing.T) {
		cs := NewCacheStore(0)
		cs.Put("a", []byte("1234"), time.Minute)
		cs.Put("a", []byte("12"), time.Minute)

		_, size := cs.Stats()
		assert.Equal(t, int64(2), size)
	})

	t.Run("Очистка просроченных ключей", func(t *testing.T) {
		cs := NewCacheStore(0)
		cs.Put("expired", []byte("1"), -time.Minute)
		cs.Put("valid", []byte("2"), time.Minute)

		cs.CleanupExpired()

		_, foundExpired := cs.Get("expired")
		assert.False(t, foundExpired, "Просроченный элемент должен быть удален")
		_, foundValid := cs.Get("valid")
		assert.True(t, foundValid, "Действительный элемент не должен быть удален")

		items, size := cs.Stats()
		assert.Equal(t, 1, items)
		assert.Equal(t, int64(1), size)
	})
}

func TestCacheStore_MaxBytes(t *testing.T) {
	t.Run("вытесняется элемент с ближайшим сроком", func(t *testing.T) {
		cs := NewCacheStore(10)
		cs.Put("first", []byte("12345"), time.Minute)
		cs.Put("second", []byte("12345"), time.Hour)
		cs.Put("third", []byte("123"), 2*time.Hour)

		_, found := cs.Get("first")
		assert.False(t, found)
		_, found = cs.Get("second")
		assert.True(t, found)
		_, found = cs.Get("third")
		assert.True(t, found)

		_, size := cs.Stats()
		assert.Equal(t, int64(8), size)
	})

	t.Run("слишком большой ресурс не кэшируется", func(t *testing.T) {
		cs := NewCacheStore(4)
		cs.Put("big", []byte("12345"), time.Minute)

		items, _ := cs.Stats()
		assert.Zero(t, items)
	})
}

func TestKey(t *testing.T) {
	// SHA256 для "hello world"
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", Key("hello world"))
}

func TestStartCleanupTicker(t *testing.T) {
	cs := NewCacheStore(0)
	cs.Put("expired", []byte("1"), 50*time.Millisecond)
	cs.Put("valid", []byte("2"), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cs.StartCleanupTicker(ctx, 100*time.Millisecond)

	// Ждем, пока таймер сработает хотя бы раз
	time.Sleep(150 * time.Millisecond)

	items, _ := cs.Stats()
	assert.Equal(t, 1, items, "Просроченный элемент должен быть удален таймером")

	_, foundValid := cs.Get("valid")
	assert.True(t, foundValid, "Действительный элемент должен остаться")
}
