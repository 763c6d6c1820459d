package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat-manager/internal/domain"
)

func archivedThread(id string, archivedAt time.Time) domain.Channel {
	return domain.Channel{
		ID:   id,
		Type: domain.ChannelTypeGuildPublicThread,
		Name: "thread-" + id,
		ThreadMetadata: &domain.ThreadMetadata{
			Archived:         true,
			ArchiveTimestamp: &archivedAt,
		},
	}
}

func TestThreadService_LiftThreadRestrictions(t *testing.T) {
	archived := archivedThread("t1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	patch := domain.ChannelPatch{Archived: new(bool), Locked: new(bool)}

	t.Run("успешная разархивация обновляет тред", func(t *testing.T) {
		api := new(mockDiscordAPI)
		opened := archived
		opened.ThreadMetadata = &domain.ThreadMetadata{}
		api.On("EditChannel", mock.Anything, "t1", patch).Return(&opened, nil).Once()
		reporter := &recordingReporter{}

		res := NewThreadService(api, WithLogger(testLogger()), WithReporter(reporter)).
			LiftThreadRestrictions(context.Background(), "t1", nil, []domain.Channel{archived})

		assert.Empty(t, res.SkipIDs)
		require.Len(t, res.Threads, 1)
		assert.False(t, res.Threads[0].IsRestricted())
		assert.True(t, reporter.hasStatus("Successfully un-archived thread - thread-t1"))
		api.AssertExpectations(t)
	})

	t.Run("неудача добавляет тред в список пропуска и не повторяется", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("EditChannel", mock.Anything, "t1", patch).Return(nil, errFake).Once()
		reporter := &recordingReporter{}
		service := NewThreadService(api, WithLogger(testLogger()), WithReporter(reporter))

		first := service.LiftThreadRestrictions(context.Background(), "t1", nil, []domain.Channel{archived})
		second := service.LiftThreadRestrictions(context.Background(), "t1", first.SkipIDs, first.Threads)

		assert.Equal(t, []string{"t1"}, first.SkipIDs)
		assert.Equal(t, []string{"t1"}, second.SkipIDs)
		assert.True(t, reporter.hasStatus("Failed to un-archive thread - thread-t1"))
		api.AssertNumberOfCalls(t, "EditChannel", 1)
	})

	t.Run("канал вне списка тредов не трогается", func(t *testing.T) {
		api := new(mockDiscordAPI)

		res := NewThreadService(api, WithLogger(testLogger())).
			LiftThreadRestrictions(context.Background(), "c1", nil, []domain.Channel{archived})

		assert.Empty(t, res.SkipIDs)
		api.AssertNotCalled(t, "EditChannel", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestThreadService_ArchivedThreads(t *testing.T) {
	t1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(-time.Hour)
	api := new(mockDiscordAPI)
	api.On("ListArchivedThreads", mock.Anything, "c1", false, (*time.Time)(nil)).
		Return(&domain.ThreadList{Threads: []domain.Channel{archivedThread("a", t1)}, HasMore: true}, nil).Once()
	api.On("ListArchivedThreads", mock.Anything, "c1", false, &t1).
		Return(&domain.ThreadList{Threads: []domain.Channel{archivedThread("b", t2)}}, nil).Once()
	api.On("ListArchivedThreads", mock.Anything, "c1", true, (*time.Time)(nil)).
		Return(nil, errFake).Once()
	reporter := &recordingReporter{}

	threads := NewThreadService(api, WithLogger(testLogger()), WithReporter(reporter)).
		ArchivedThreads(context.Background(), "c1", []domain.Channel{{ID: "b"}})

	require.Len(t, threads, 1)
	assert.Equal(t, "a", threads[0].ID)
	assert.True(t, reporter.hasStatus("Retrieved 2 archived threads"))
	api.AssertExpectations(t)
}

func TestThreadsFromMessages(t *testing.T) {
	messages := []domain.Message{
		{ID: "1", Thread: &domain.Channel{ID: "t1"}},
		{ID: "2", Thread: &domain.Channel{ID: "t1"}},
		{ID: "3", Thread: &domain.Channel{ID: "t2"}},
		{ID: "4"},
	}

	got := ThreadsFromMessages(messages, []domain.Channel{{ID: "t2"}})

	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}
