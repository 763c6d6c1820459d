package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-chat-manager/internal/domain"
)

func TestCriteriaFlags(t *testing.T) {
	t.Run("корректные значения", func(t *testing.T) {
		f := criteriaFlags{
			content: "hello",
			authors: []string{"u1"},
			has:     []string{"image", "link"},
			before:  "2024-03-01",
			after:   "2024-01-01T10:00:00Z",
			pinned:  "unpinned",
		}
		c, err := f.criteria()
		require.NoError(t, err)
		assert.Equal(t, "hello", c.SearchMessageContent)
		assert.Equal(t, []domain.HasType{domain.HasImage, domain.HasLink}, c.SelectedHasTypes)
		require.NotNil(t, c.SearchBeforeDate)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *c.SearchBeforeDate)
		assert.Equal(t, 10, c.SearchAfterDate.Hour())
		assert.Equal(t, domain.PinnedExcluded, c.IsPinned)
		assert.True(t, c.IsActive())
	})

	t.Run("все ошибки сообщаются сразу", func(t *testing.T) {
		f := criteriaFlags{has: []string{"gif"}, before: "yesterday", pinned: "maybe"}
		_, err := f.criteria()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gif")
		assert.Contains(t, err.Error(), "--before")
		assert.Contains(t, err.Error(), "--pinned")
	})
}

func TestTargetFlags(t *testing.T) {
	t.Run("нужна цель", func(t *testing.T) {
		_, err := (&targetFlags{}).request()
		assert.Error(t, err)
	})

	t.Run("фильтры собираются из флагов", func(t *testing.T) {
		f := targetFlags{
			channelID:  "c1",
			textFilter: []string{"foo"},
			inverse:    true,
			selected:   []string{"m1"},
		}
		req, err := f.request()
		require.NoError(t, err)
		assert.Equal(t, "c1", req.ChannelID)
		require.Len(t, req.Filters, 2)
		assert.Equal(t, domain.FilterNameContent, req.Filters[0].Name)
		assert.True(t, req.Filters[1].IsInverse())
		assert.Equal(t, []string{"m1"}, req.SelectedIDs)
		assert.False(t, req.Criteria.IsActive())
	})
}
