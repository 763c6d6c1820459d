package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discord-chat-manager/internal/core/services"
	"discord-chat-manager/internal/domain"
)

// mockDiscordAPI - мок для ports.DiscordAPI.
type mockDiscordAPI struct {
	mock.Mock
}

func (m *mockDiscordAPI) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if res := args.Get(0); res != nil {
		return res.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) GetGuild(ctx context.Context, guildID string) (*domain.Guild, error) {
	args := m.Called(ctx, guildID)
	if res := args.Get(0); res != nil {
		return res.(*domain.Guild), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) GetGuildMember(ctx context.Context, guildID, userID string) (*domain.GuildMember, error) {
	args := m.Called(ctx, guildID, userID)
	if res := args.Get(0); res != nil {
		return res.(*domain.GuildMember), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	args := m.Called(ctx, channelID)
	if res := args.Get(0); res != nil {
		return res.(*domain.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) EditChannel(ctx context.Context, channelID string, patch domain.ChannelPatch) (*domain.Channel, error) {
	args := m.Called(ctx, channelID, patch)
	if res := args.Get(0); res != nil {
		return res.(*domain.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) ListMessages(ctx context.Context, channelID, before string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, channelID, before, limit)
	if res := args.Get(0); res != nil {
		return res.([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) MessagesAround(ctx context.Context, channelID, messageID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, channelID, messageID, limit)
	if res := args.Get(0); res != nil {
		return res.([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) SearchMessages(ctx context.Context, guildID, channelID string, offset int, criteria domain.SearchCriteria) (*domain.SearchResult, error) {
	args := m.Called(ctx, guildID, channelID, offset, criteria)
	if res := args.Get(0); res != nil {
		return res.(*domain.SearchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) EditMessage(ctx context.Context, channelID, messageID string, patch domain.MessagePatch) (*domain.Message, error) {
	args := m.Called(ctx, channelID, messageID, patch)
	if res := args.Get(0); res != nil {
		return res.(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return m.Called(ctx, channelID, messageID).Error(0)
}

func (m *mockDiscordAPI) ListArchivedThreads(ctx context.Context, channelID string, private bool, before *time.Time) (*domain.ThreadList, error) {
	args := m.Called(ctx, channelID, private, before)
	if res := args.Get(0); res != nil {
		return res.(*domain.ThreadList), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) GetReactions(ctx context.Context, channelID, messageID, emoji string, reactionType domain.ReactionType, after string, limit int) ([]domain.User, error) {
	args := m.Called(ctx, channelID, messageID, emoji, reactionType, after, limit)
	if res := args.Get(0); res != nil {
		return res.([]domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscordAPI) DeleteReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	return m.Called(ctx, channelID, messageID, emoji, userID).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var dmMessages = []domain.Message{
	{ID: "m1", ChannelID: "dm1", Content: "hello there", Author: domain.User{ID: "u1", Username: "alice"}},
	{ID: "m2", ChannelID: "dm1", Content: "goodbye", Author: domain.User{ID: "u2", Username: "bob"}},
	{ID: "m3", ChannelID: "dm1", Content: "hello again", Author: domain.User{ID: "u1", Username: "alice"}},
}

func newTestJobs(api *mockDiscordAPI) *Jobs {
	return NewJobs(api, nil, nil, nil, nil, Config{}, testLogger())
}

// expectDM настраивает получение канала ЛС и одной неполной страницы сообщений.
func expectDM(api *mockDiscordAPI) {
	api.On("GetChannel", mock.Anything, "dm1").Return(&domain.Channel{ID: "dm1", Type: domain.ChannelTypeDM}, nil)
	api.On("ListMessages", mock.Anything, "dm1", "", services.DefaultPageSize).Return(dmMessages, nil)
}

func TestJobs_Search(t *testing.T) {
	api := new(mockDiscordAPI)
	expectDM(api)
	jobs := newTestJobs(api)

	res, err := jobs.Search(context.Background(), SearchRequest{
		ChannelID:   "dm1",
		Filters:     []domain.Filter{domain.TextFilter(domain.FilterNameContent, "hello")},
		SelectedIDs: []string{"m2", "m3"},
	}, Run{})
	require.NoError(t, err)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, "m1", res.Messages[0].ID)
	assert.Equal(t, "m3", res.Messages[1].ID)
	assert.Equal(t, []string{"m3"}, res.SelectedIDs, "выбор сужается до видимых сообщений")

	t.Run("пользователи сохраняются между задачами", func(t *testing.T) {
		users := jobs.snapshotUsers()
		assert.Contains(t, users, "u1")
		assert.Equal(t, "alice", users["u1"].UserName)
	})

	t.Run("без цели возвращается ошибка", func(t *testing.T) {
		_, err := jobs.Search(context.Background(), SearchRequest{}, Run{})
		assert.ErrorIs(t, err, services.ErrNoTarget)
	})
	api.AssertExpectations(t)
}

func TestJobs_Delete(t *testing.T) {
	t.Run("удаляются только выбранные сообщения", func(t *testing.T) {
		api := new(mockDiscordAPI)
		expectDM(api)
		api.On("GetCurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil).Once()
		api.On("DeleteMessage", mock.Anything, "dm1", "m3").Return(nil).Once()
		jobs := newTestJobs(api)

		stop := &services.StopFlag{}
		sum, err := jobs.Delete(context.Background(), DeleteRequest{
			SearchRequest: SearchRequest{ChannelID: "dm1", SelectedIDs: []string{"m3"}},
			Config:        domain.DeleteConfig{Attachments: true, Messages: true},
		}, Run{Stop: stop})
		require.NoError(t, err)

		assert.Equal(t, 1, sum.Processed)
		assert.Equal(t, 1, sum.Deleted)
		assert.False(t, sum.Stopped)
		api.AssertNotCalled(t, "DeleteMessage", mock.Anything, "dm1", "m1")
		api.AssertExpectations(t)
	})

	t.Run("пустая настройка удаления отклоняется", func(t *testing.T) {
		api := new(mockDiscordAPI)
		_, err := newTestJobs(api).Delete(context.Background(), DeleteRequest{
			SearchRequest: SearchRequest{ChannelID: "dm1"},
		}, Run{})
		assert.Error(t, err)
		api.AssertNotCalled(t, "GetCurrentUser", mock.Anything)
	})

	t.Run("остановленная задача ничего не удаляет", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("GetCurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
		api.On("GetChannel", mock.Anything, "dm1").Return(&domain.Channel{ID: "dm1", Type: domain.ChannelTypeDM}, nil)
		stop := &services.StopFlag{}
		stop.Stop()

		sum, err := newTestJobs(api).Delete(context.Background(), DeleteRequest{
			SearchRequest: SearchRequest{ChannelID: "dm1"},
			Config:        domain.DeleteConfig{Messages: true},
		}, Run{Stop: stop})
		require.NoError(t, err)
		assert.Zero(t, sum.Deleted)
		assert.True(t, sum.Stopped)
		api.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestJobs_Edit(t *testing.T) {
	t.Run("пустой текст", func(t *testing.T) {
		_, err := newTestJobs(new(mockDiscordAPI)).Edit(context.Background(), EditRequest{}, Run{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("правка отфильтрованных сообщений", func(t *testing.T) {
		api := new(mockDiscordAPI)
		expectDM(api)
		api.On("GetCurrentUser", mock.Anything).Return(&domain.User{ID: "u1"}, nil)
		api.On("EditMessage", mock.Anything, "dm1", mock.Anything, mock.MatchedBy(func(p domain.MessagePatch) bool {
			return p.Content == "[removed]"
		})).Return(&domain.Message{ID: "edited", ChannelID: "dm1", Content: "[removed]"}, nil).Twice()

		sum, err := newTestJobs(api).Edit(context.Background(), EditRequest{
			SearchRequest: SearchRequest{
				ChannelID: "dm1",
				Filters:   []domain.Filter{domain.TextFilter(domain.FilterNameContent, "hello")},
			},
			Text: "[removed]",
		}, Run{})
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Processed)
		assert.Equal(t, 2, sum.Edited)
		api.AssertExpectations(t)
	})
}

func TestJobs_Purge(t *testing.T) {
	t.Run("ошибки проверки объединяются", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("GetCurrentUser", mock.Anything).Return(nil, errors.New("unauthorized"))

		_, err := newTestJobs(api).Purge(context.Background(), PurgeRequest{}, Run{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "не заданы серверы")
		assert.Contains(t, err.Error(), "unauthorized")
	})
}

func TestJobs_Guild(t *testing.T) {
	api := new(mockDiscordAPI)
	api.On("GetGuild", mock.Anything, "g1").Return(&domain.Guild{ID: "g1", Name: "Guild"}, nil).Once()
	jobs := newTestJobs(api)

	for range 2 {
		g, err := jobs.guild(context.Background(), "g1")
		require.NoError(t, err)
		assert.Equal(t, "Guild", g.Name)
	}
	api.AssertExpectations(t)
}
