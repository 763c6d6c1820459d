package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"discord-chat-manager/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDiscordAPI - это мок для интерфейса ports.DiscordAPI.
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

// recordingReporter запоминает все, что сообщают сервисы.
type recordingReporter struct {
	mu            sync.Mutex
	notifications []domain.Notification
	statuses      []string
	progress      []domain.Progress
	modifying     []bool
}

func (r *recordingReporter) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingReporter) SetModifying(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifying = append(r.modifying, v)
}

func (r *recordingReporter) SetProgress(p domain.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) SetStatus(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingReporter) notificationTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n.Message)
	}
	return out
}

func (r *recordingReporter) lastProgress() domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progress) == 0 {
		return domain.Progress{}
	}
	return r.progress[len(r.progress)-1]
}

func (r *recordingReporter) hasStatus(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.statuses, s)
}

// countingStop срабатывает после заданного числа проверок.
type countingStop struct {
	mu    sync.Mutex
	after int
	calls int
}

func (s *countingStop) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.calls > s.after
}

var errFake = errors.New("fake api error")

// fakeSearchAPI - поисковый индекс с состоянием: удаленные сообщения пропадают
// из выдачи, общее число результатов уменьшается.
type fakeSearchAPI struct {
	mockDiscordAPI

	mu          sync.Mutex
	messages    []domain.Message
	undeletable map[string]bool
	searches    int
	deletes     []string
}

func newFakeSearchAPI(messages []domain.Message, undeletable ...string) *fakeSearchAPI {
	f := &fakeSearchAPI{messages: slices.Clone(messages), undeletable: make(map[string]bool)}
	for _, id := range undeletable {
		f.undeletable[id] = true
	}
	return f
}

func (f *fakeSearchAPI) SearchMessages(_ context.Context, _, _ string, offset int, _ domain.SearchCriteria) (*domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++

	res := &domain.SearchResult{TotalResults: len(f.messages)}
	if offset >= len(f.messages) {
		return res, nil
	}
	end := min(offset+domain.OffsetIncrement, len(f.messages))
	for _, m := range f.messages[offset:end] {
		res.Messages = append(res.Messages, []domain.Message{m})
	}
	return res, nil
}

func (f *fakeSearchAPI) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	if f.undeletable[messageID] {
		return errFake
	}
	f.messages = slices.DeleteFunc(f.messages, func(m domain.Message) bool { return m.ID == messageID })
	return nil
}

func (f *fakeSearchAPI) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func ownMessage(id, userID string) domain.Message {
	return domain.Message{
		ID:        id,
		ChannelID: "chan",
		Author:    domain.User{ID: userID, Username: "user-" + userID},
		Content:   "message " + id,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
