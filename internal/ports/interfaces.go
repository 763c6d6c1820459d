package ports

import (
	"context"
	"io"
	"time"

	"discord-chat-manager/internal/domain"
)

// DiscordAPI определяет типизированные вызовы REST API Discord, которые нужны ядру.
// Ошибка означает неуспешный ответ: ядро никогда не прерывает пакет из-за нее,
// а выбирает ветку "пропустить/уведомить/продолжить".
type DiscordAPI interface {
	GetCurrentUser(ctx context.Context) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetGuild(ctx context.Context, guildID string) (*domain.Guild, error)
	GetGuildMember(ctx context.Context, guildID, userID string) (*domain.GuildMember, error)
	GetChannel(ctx context.Context, channelID string) (*domain.Channel, error)
	EditChannel(ctx context.Context, channelID string, patch domain.ChannelPatch) (*domain.Channel, error)

	// ListMessages возвращает до limit сообщений канала, предшествующих before.
	ListMessages(ctx context.Context, channelID, before string, limit int) ([]domain.Message, error)
	// MessagesAround возвращает сообщения вокруг messageID (включая его).
	MessagesAround(ctx context.Context, channelID, messageID string, limit int) ([]domain.Message, error)
	// SearchMessages выполняет поиск по серверу (guildID) или по каналу ЛС (channelID).
	SearchMessages(ctx context.Context, guildID, channelID string, offset int, criteria domain.SearchCriteria) (*domain.SearchResult, error)
	EditMessage(ctx context.Context, channelID, messageID string, patch domain.MessagePatch) (*domain.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// ListArchivedThreads возвращает страницу архивных тредов, заархивированных до before.
	ListArchivedThreads(ctx context.Context, channelID string, private bool, before *time.Time) (*domain.ThreadList, error)

	GetReactions(ctx context.Context, channelID, messageID, emoji string, reactionType domain.ReactionType, after string, limit int) ([]domain.User, error)
	// DeleteReaction удаляет реакцию пользователя. Пустой userID означает текущего пользователя.
	DeleteReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
}

// AssetDownloader загружает медиа и изображения CDN.
type AssetDownloader interface {
	Download(ctx context.Context, url string, maxSize int64) ([]byte, error)
}

// Notifier принимает короткие уведомления для пользователя.
type Notifier interface {
	Notify(n domain.Notification)
}

// ProgressSink принимает признак модификации и текущую сущность задачи.
type ProgressSink interface {
	SetModifying(modifying bool)
	SetProgress(p domain.Progress)
}

// StatusSink принимает текстовый статус.
type StatusSink interface {
	SetStatus(status string)
}

// Reporter объединяет все приемники состояния длительной операции.
type Reporter interface {
	Notifier
	ProgressSink
	StatusSink
}

// StopSignal - кооперативная отмена: опрашивается в контрольных точках.
type StopSignal interface {
	Stopped() bool
}

// ExtractionService определяет интерфейс для извлечения ID пользователей, на которые
// ссылаются сообщения.
type ExtractionService interface {
	ExtractUserIDs(messages []domain.Message, reactions domain.ReactionMap) []string
}

// EnrichmentService определяет интерфейс для обогащения таблиц пользователей и реакций.
type EnrichmentService interface {
	EnrichUsers(ctx context.Context, messages []domain.Message, guildID string, users domain.UserMap, reactions domain.ReactionMap) domain.UserMap
	BuildReactionMap(ctx context.Context, messages []domain.Message, reactions domain.ReactionMap, users domain.UserMap) (domain.ReactionMap, domain.UserMap)
}

// Formatter сериализует страницу экспорта в конкретный формат.
type Formatter interface {
	Extension() string
	Write(w io.Writer, page domain.ExportPage) error
}

// ArchiveWriter принимает файлы экспорта.
type ArchiveWriter interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	// Close завершает архив и возвращает его расположение.
	Close(ctx context.Context) (string, error)
}

// ArchiveFactory создает архив для одного экспорта.
type ArchiveFactory interface {
	NewArchive(ctx context.Context, name string) (ArchiveWriter, error)
}

// AssetCache хранит загруженные ресурсы между экспортами.
type AssetCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte, ttl time.Duration)
}
