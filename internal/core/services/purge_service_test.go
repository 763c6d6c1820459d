package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

func newTestPurge(api ports.DiscordAPI, reporter *recordingReporter, cfg PurgeConfig, opts ...Option) *PurgeService {
	opts = append([]Option{WithLogger(testLogger()), WithReporter(reporter)}, opts...)
	threads := NewThreadService(api, opts...)
	enrichment := NewEnrichmentService(api, EnrichmentConfig{}, opts...)
	retrieval := NewRetrievalService(api, enrichment, threads, RetrievalConfig{}, opts...)
	return NewPurgeService(retrieval, NewMutationService(api, threads, opts...), cfg, opts...)
}

func TestPurgeService_Purge(t *testing.T) {
	target := []PurgeTarget{{GuildID: "g1"}}
	state := PurgeState{CurrentUserID: "me"}

	t.Run("выдача сокращается до нуля", func(t *testing.T) {
		var messages []domain.Message
		for i := 0; i < 30; i++ {
			messages = append(messages, ownMessage(fmt.Sprintf("m%02d", i), "me"))
		}
		api := newFakeSearchAPI(messages)
		reporter := &recordingReporter{}

		report := newTestPurge(api, reporter, PurgeConfig{}).Purge(context.Background(), target, domain.SearchCriteria{}, state)

		require.Len(t, report.Targets, 1)
		assert.Equal(t, 30, report.Targets[0].Deleted)
		assert.Equal(t, 4, report.Targets[0].Windows)
		assert.False(t, report.Targets[0].Stopped)
		assert.Empty(t, api.messages)
		assert.Equal(t, 4, api.searchCount())
		assert.Equal(t, []bool{true, false}, reporter.modifying)
		assert.True(t, reporter.lastProgress().IsEmpty())
	})

	t.Run("неудаляемое сообщение завершает чистку после двух проходов", func(t *testing.T) {
		api := newFakeSearchAPI([]domain.Message{ownMessage("x", "me")}, "x")
		reporter := &recordingReporter{}

		report := newTestPurge(api, reporter, PurgeConfig{}).Purge(context.Background(), target, domain.SearchCriteria{}, state)

		require.Len(t, report.Targets, 1)
		assert.Equal(t, 2, api.searchCount())
		assert.Equal(t, []string{"x"}, api.deletes)
		assert.Equal(t, 1, report.Targets[0].Failed)
		assert.Contains(t, reporter.notificationTexts(), msgMissingPermissionToModify)
	})

	t.Run("чужие сообщения без снятия реакций пропускаются", func(t *testing.T) {
		api := newFakeSearchAPI([]domain.Message{ownMessage("o1", "other")})

		report := newTestPurge(api, &recordingReporter{}, PurgeConfig{}).Purge(context.Background(), target, domain.SearchCriteria{}, state)

		require.Len(t, report.Targets, 1)
		assert.Zero(t, report.Targets[0].Processed)
		assert.Empty(t, api.deletes)
		assert.Equal(t, 2, api.searchCount())
	})

	t.Run("сохранение вложений правит собственное сообщение", func(t *testing.T) {
		msg := ownMessage("a1", "me")
		msg.Attachments = []domain.Attachment{{ID: "att"}}
		api := newFakeSearchAPI([]domain.Message{msg})
		api.On("EditMessage", mock.Anything, "chan", "a1", domain.MessagePatch{Content: "", Attachments: []domain.Attachment{{ID: "att"}}}).
			Return(nil, nil).Once()

		report := newTestPurge(api, &recordingReporter{}, PurgeConfig{RetainAttachedMedia: true}).
			Purge(context.Background(), target, domain.SearchCriteria{}, state)

		assert.Equal(t, 1, report.Targets[0].Edited)
		assert.Empty(t, api.deletes)
		api.AssertExpectations(t)
	})

	t.Run("снятие реакций указанных пользователей", func(t *testing.T) {
		ok := domain.Reaction{Count: 1, CountDetails: domain.ReactionCountDetails{Normal: 1}, Emoji: domain.Emoji{Name: "ok"}}
		msg := ownMessage("r1", "other")
		api := newFakeSearchAPI([]domain.Message{msg})
		withReaction := msg
		withReaction.Reactions = []domain.Reaction{ok}
		api.On("MessagesAround", mock.Anything, "chan", "r1", DefaultPageSize).Return([]domain.Message{withReaction}, nil)
		api.On("GetReactions", mock.Anything, "chan", "r1", "ok", domain.ReactionTypeNormal, "", DefaultPageSize).
			Return([]domain.User{{ID: "u9"}}, nil)
		api.On("GetReactions", mock.Anything, "chan", "r1", "ok", domain.ReactionTypeBurst, "", DefaultPageSize).
			Return([]domain.User{}, nil)
		api.On("DeleteReaction", mock.Anything, "chan", "r1", "ok", "u9").Return(nil).Once()

		report := newTestPurge(api, &recordingReporter{}, PurgeConfig{ReactionRemovalFrom: []string{"u9"}}).
			Purge(context.Background(), target, domain.SearchCriteria{UserIDs: []string{"other"}}, state)

		require.Len(t, report.Targets, 1)
		assert.Equal(t, 1, report.Targets[0].ReactionsRemoved)
		assert.Empty(t, api.deletes)
		api.AssertExpectations(t)
	})

	t.Run("остановка до начала не трогает цели", func(t *testing.T) {
		api := newFakeSearchAPI([]domain.Message{ownMessage("m1", "me")})
		stop := &StopFlag{}
		stop.Stop()

		report := newTestPurge(api, &recordingReporter{}, PurgeConfig{}, WithStopSignal(stop)).
			Purge(context.Background(), target, domain.SearchCriteria{}, state)

		assert.Empty(t, report.Targets)
		assert.Zero(t, api.searchCount())
	})
}

func TestPurgeService_DefaultCriteria(t *testing.T) {
	t.Run("автор по умолчанию: текущий пользователь", func(t *testing.T) {
		s := newTestPurge(new(mockDiscordAPI), &recordingReporter{}, PurgeConfig{})
		got := s.defaultCriteria(domain.SearchCriteria{SearchMessageContent: "x"}, "me")
		assert.Equal(t, []string{"me"}, got.UserIDs)
	})

	t.Run("заданный автор сохраняется", func(t *testing.T) {
		s := newTestPurge(new(mockDiscordAPI), &recordingReporter{}, PurgeConfig{})
		got := s.defaultCriteria(domain.SearchCriteria{UserIDs: []string{"u1"}}, "me")
		assert.Equal(t, []string{"u1"}, got.UserIDs)
	})

	t.Run("в режиме снятия реакций автор не подставляется", func(t *testing.T) {
		s := newTestPurge(new(mockDiscordAPI), &recordingReporter{}, PurgeConfig{ReactionRemovalFrom: []string{"u9"}})
		got := s.defaultCriteria(domain.SearchCriteria{}, "me")
		assert.Empty(t, got.UserIDs)
	})
}
