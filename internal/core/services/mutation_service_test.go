package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat-manager/internal/domain"
)

func newTestMutation(api *mockDiscordAPI, reporter *recordingReporter, opts ...Option) *MutationService {
	opts = append([]Option{WithLogger(testLogger()), WithReporter(reporter)}, opts...)
	return NewMutationService(api, NewThreadService(api, opts...), opts...)
}

func TestMutationService_DeleteMessages(t *testing.T) {
	t.Run("пустой текст с вложением удаляется целиком", func(t *testing.T) {
		api := new(mockDiscordAPI)
		reporter := &recordingReporter{}
		msg := domain.Message{ID: "m1", ChannelID: "c1", Attachments: []domain.Attachment{{ID: "a1"}}}
		api.On("DeleteMessage", mock.Anything, "c1", "m1").Return(nil).Once()

		res := newTestMutation(api, reporter).DeleteMessages(context.Background(),
			[]domain.Message{msg}, domain.DeleteConfig{Attachments: true}, MutationState{Messages: []domain.Message{msg}})

		assert.Equal(t, 1, res.Deleted)
		assert.Empty(t, res.Messages)
		assert.Equal(t, []bool{true, false}, reporter.modifying)
		assert.True(t, reporter.lastProgress().IsEmpty())
		api.AssertExpectations(t)
	})

	t.Run("только вложения при наличии текста правят сообщение", func(t *testing.T) {
		api := new(mockDiscordAPI)
		msg := domain.Message{ID: "m1", ChannelID: "c1", Content: "keep", Attachments: []domain.Attachment{{ID: "a1"}}}
		edited := msg
		edited.Attachments = []domain.Attachment{}
		api.On("EditMessage", mock.Anything, "c1", "m1", domain.MessagePatch{Content: "keep", Attachments: []domain.Attachment{}}).
			Return(&edited, nil).Once()

		res := newTestMutation(api, &recordingReporter{}).DeleteMessages(context.Background(),
			[]domain.Message{msg}, domain.DeleteConfig{Attachments: true}, MutationState{Messages: []domain.Message{msg}})

		assert.Equal(t, 1, res.Edited)
		require.Len(t, res.Messages, 1)
		assert.Empty(t, res.Messages[0].Attachments)
		api.AssertExpectations(t)
	})

	t.Run("неудаляемый тип теряет только вложения", func(t *testing.T) {
		api := new(mockDiscordAPI)
		msg := domain.Message{ID: "m1", ChannelID: "c1", Type: domain.MessageTypeCall, Content: "call",
			Attachments: []domain.Attachment{{ID: "a1"}}}
		api.On("EditMessage", mock.Anything, "c1", "m1", domain.MessagePatch{Content: "call", Attachments: []domain.Attachment{}}).
			Return(nil, nil).Once()

		res := newTestMutation(api, &recordingReporter{}).DeleteMessages(context.Background(),
			[]domain.Message{msg}, domain.DeleteConfig{Attachments: true, Messages: true}, MutationState{Messages: []domain.Message{msg}})

		assert.Equal(t, 1, res.Edited)
		assert.Equal(t, "call", res.Messages[0].Content)
		assert.Empty(t, res.Messages[0].Attachments)
		api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ошибка удаления уведомляет и продолжает пакет", func(t *testing.T) {
		api := new(mockDiscordAPI)
		reporter := &recordingReporter{}
		m1 := domain.Message{ID: "m1", ChannelID: "c1", Content: "a"}
		m2 := domain.Message{ID: "m2", ChannelID: "c1", Content: "b"}
		api.On("DeleteMessage", mock.Anything, "c1", "m1").Return(errFake).Once()
		api.On("DeleteMessage", mock.Anything, "c1", "m2").Return(nil).Once()

		res := newTestMutation(api, reporter).DeleteMessages(context.Background(),
			[]domain.Message{m1, m2}, domain.DeleteConfig{Messages: true}, MutationState{Messages: []domain.Message{m1, m2}})

		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 1, res.Deleted)
		assert.Equal(t, []string{"m1"}, ids(res.Messages))
		assert.Equal(t, []string{msgMissingPermissionToModify}, reporter.notificationTexts())
		api.AssertExpectations(t)
	})

	t.Run("сообщение из пропускаемого треда не трогается", func(t *testing.T) {
		api := new(mockDiscordAPI)
		reporter := &recordingReporter{}
		msg := domain.Message{ID: "m1", ChannelID: "t1"}

		res := newTestMutation(api, reporter).DeleteMessages(context.Background(),
			[]domain.Message{msg}, domain.DeleteConfig{Messages: true}, MutationState{SkipThreadIDs: []string{"t1"}})

		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, []string{msgPermissionMissingSkipping}, reporter.notificationTexts())
		api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("реакции без реакций у сообщений ничего не делают", func(t *testing.T) {
		api := new(mockDiscordAPI)
		reporter := &recordingReporter{}

		res := newTestMutation(api, reporter).DeleteMessages(context.Background(),
			[]domain.Message{{ID: "m1"}}, domain.DeleteConfig{Reactions: true, ReactingUserIDs: []string{"u1"}, Emojis: []string{"x"}}, MutationState{})

		assert.Zero(t, res.ReactionsRemoved)
		assert.Empty(t, reporter.modifying)
	})

	t.Run("снятие реакций по парам из карты", func(t *testing.T) {
		api := new(mockDiscordAPI)
		reporter := &recordingReporter{}
		msg := domain.Message{ID: "m1", ChannelID: "c1", Reactions: []domain.Reaction{
			{Count: 2, CountDetails: domain.ReactionCountDetails{Normal: 2}, Emoji: domain.Emoji{Name: "ok"}},
		}}
		state := MutationState{
			Messages:      []domain.Message{msg},
			CurrentUserID: "me",
			Reactions:     domain.ReactionMap{"m1": {"ok": {{ID: "me"}, {ID: "u2"}}}},
		}
		api.On("DeleteReaction", mock.Anything, "c1", "m1", "ok", "").Return(nil).Once()

		res := newTestMutation(api, reporter).DeleteMessages(context.Background(), []domain.Message{msg},
			domain.DeleteConfig{Reactions: true, ReactingUserIDs: []string{"me", "u3"}, Emojis: []string{"ok"}}, state)

		assert.Equal(t, 1, res.ReactionsRemoved)
		assert.Equal(t, []domain.ReactingUser{{ID: "u2"}}, res.Reactions["m1"]["ok"])
		require.Len(t, res.Messages[0].Reactions, 1)
		assert.Equal(t, 1, res.Messages[0].Reactions[0].Count)
		assert.Len(t, state.Reactions["m1"]["ok"], 2, "входное состояние не изменяется")
		api.AssertExpectations(t)
	})

	t.Run("остановка прерывает пакет", func(t *testing.T) {
		api := new(mockDiscordAPI)
		stop := &StopFlag{}
		stop.Stop()

		res := newTestMutation(api, &recordingReporter{}, WithStopSignal(stop)).DeleteMessages(context.Background(),
			[]domain.Message{{ID: "m1", ChannelID: "c1"}}, domain.DeleteConfig{Messages: true}, MutationState{})

		assert.Zero(t, res.Deleted)
		api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMutationService_EditMessages(t *testing.T) {
	api := new(mockDiscordAPI)
	msg := domain.Message{ID: "m1", ChannelID: "c1", Content: "old"}
	api.On("EditMessage", mock.Anything, "c1", "m1", domain.MessagePatch{Content: "new", Attachments: []domain.Attachment{}}).
		Return(nil, nil).Once()

	res := newTestMutation(api, &recordingReporter{}).EditMessages(context.Background(),
		[]domain.Message{msg}, "new", MutationState{Messages: []domain.Message{msg}})

	assert.Equal(t, 1, res.Edited)
	assert.Equal(t, "new", res.Messages[0].Content)
	api.AssertExpectations(t)
}

func TestMutationService_DeleteAttachment(t *testing.T) {
	t.Run("последнее вложение без текста удаляет сообщение", func(t *testing.T) {
		api := new(mockDiscordAPI)
		msg := domain.Message{ID: "m1", ChannelID: "c1", Attachments: []domain.Attachment{{ID: "a1"}}}
		api.On("DeleteMessage", mock.Anything, "c1", "m1").Return(nil).Once()

		res := newTestMutation(api, &recordingReporter{}).DeleteAttachment(context.Background(), msg, "a1",
			MutationState{Messages: []domain.Message{msg}})

		assert.Equal(t, 1, res.Deleted)
		assert.Empty(t, res.Messages)
	})

	t.Run("одно из нескольких вложений вырезается правкой", func(t *testing.T) {
		api := new(mockDiscordAPI)
		msg := domain.Message{ID: "m1", ChannelID: "c1", Attachments: []domain.Attachment{{ID: "a1"}, {ID: "a2"}}}
		api.On("EditMessage", mock.Anything, "c1", "m1", domain.MessagePatch{Attachments: []domain.Attachment{{ID: "a2"}}}).
			Return(nil, nil).Once()

		res := newTestMutation(api, &recordingReporter{}).DeleteAttachment(context.Background(), msg, "a1",
			MutationState{Messages: []domain.Message{msg}})

		assert.Equal(t, 1, res.Edited)
		assert.Equal(t, []domain.Attachment{{ID: "a2"}}, res.Messages[0].Attachments)
		assert.Len(t, msg.Attachments, 2)
	})
}

func TestMutationService_DeleteReaction(t *testing.T) {
	msg := domain.Message{ID: "m1", ChannelID: "c1", Reactions: []domain.Reaction{
		{Count: 1, CountDetails: domain.ReactionCountDetails{Burst: 1}, Emoji: domain.Emoji{Name: "fire", ID: "7"}},
	}}
	state := MutationState{
		Messages:      []domain.Message{msg},
		CurrentUserID: "me",
		Reactions:     domain.ReactionMap{"m1": {"fire:7": {{ID: "u2", Burst: true}}}},
	}

	t.Run("супер-реакция другого пользователя", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("DeleteReaction", mock.Anything, "c1", "m1", "fire:7", "u2").Return(nil).Once()

		res, ok := newTestMutation(api, &recordingReporter{}).DeleteReaction(context.Background(), "c1", "m1", "fire:7", "u2", state)

		require.True(t, ok)
		assert.Empty(t, res.Messages[0].Reactions, "реакция с нулевым счетчиком удаляется")
		assert.Empty(t, res.Reactions["m1"]["fire:7"])
		api.AssertExpectations(t)
	})

	t.Run("неизвестное сообщение не вызывает API", func(t *testing.T) {
		api := new(mockDiscordAPI)

		_, ok := newTestMutation(api, &recordingReporter{}).DeleteReaction(context.Background(), "c1", "nope", "fire:7", "u2", state)

		assert.False(t, ok)
		api.AssertNotCalled(t, "DeleteReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
