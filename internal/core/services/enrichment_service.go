package services

import (
	"context"
	"fmt"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// EnrichmentConfig хранит конфигурацию для EnrichmentService.
type EnrichmentConfig struct {
	// DisplayNameLookup включает загрузку имени и аватара пользователя.
	DisplayNameLookup bool
	// ServerNicknameLookup включает загрузку ника и ролей на сервере.
	ServerNicknameLookup bool
	// ReactionsEnabled разрешает учитывать пользователей из карты реакций.
	ReactionsEnabled bool
	// RefreshRate - срок, после которого данные пользователя считаются устаревшими.
	RefreshRate time.Duration
}

// EnrichmentService обогащает таблицы пользователей и реакций через Discord API.
// Вызовы выполняются последовательно: API ограничивает частоту по маршрутам.
type EnrichmentService struct {
	runtime
	api       ports.DiscordAPI
	extractor ports.ExtractionService
	config    EnrichmentConfig
}

// NewEnrichmentService создает новый EnrichmentService с использованием функциональных опций.
func NewEnrichmentService(api ports.DiscordAPI, cfg EnrichmentConfig, opts ...Option) *EnrichmentService {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = 60 * time.Minute
	}
	return &EnrichmentService{
		runtime:   newRuntime(opts),
		api:       api,
		extractor: NewExtractionService(),
		config:    cfg,
	}
}

// EnrichUsers дополняет таблицу пользователей для пакета сообщений.
// Имя и данные сервера проверяются на устаревание независимо друг от друга,
// загружается только устаревшая часть. Ошибка по одному пользователю не прерывает
// обработку остальных. Входная карта не изменяется.
func (s *EnrichmentService) EnrichUsers(ctx context.Context, messages []domain.Message, guildID string, users domain.UserMap, reactions domain.ReactionMap) domain.UserMap {
	out := users.Clone()
	if !s.config.ReactionsEnabled {
		reactions = nil
	}

	ids := s.extractor.ExtractUserIDs(messages, reactions)
	authors := authorsByID(messages)
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		seed := domain.UserData{Guilds: map[string]domain.GuildUserData{}}
		if author, ok := authors[id]; ok {
			seed.UserName = author.Username
			seed.DisplayName = author.GlobalName
			seed.Avatar = author.Avatar
		}
		out[id] = seed
	}

	fetchGuild := guildID != "" && s.config.ServerNicknameLookup
	fetched := 0
	for _, id := range ids {
		if s.stopped(ctx) {
			s.log.InfoContext(ctx, "User enrichment stopped", "processed", fetched, "total", len(ids))
			break
		}

		data := out[id]
		now := s.now()

		needsDisplayName := s.config.DisplayNameLookup &&
			((data.UserName == "" && data.DisplayName == "") || domain.IsStale(data.Timestamp, now, s.config.RefreshRate))

		var needsGuildData bool
		if fetchGuild {
			entry, ok := data.Guilds[guildID]
			needsGuildData = !ok || domain.IsStale(entry.Timestamp, now, s.config.RefreshRate)
		}

		if needsDisplayName {
			s.status(fmt.Sprintf("Retrieving alias data for %s", data.Label(id)))
			user, err := executeOperation(ctx, s.runtime, []any{"operation", "GetUser", "user_id", id},
				func(ctx context.Context) (*domain.User, error) { return s.api.GetUser(ctx, id) })
			if err == nil && user != nil {
				data.UserName = user.Username
				data.DisplayName = user.GlobalName
				data.Avatar = user.Avatar
				data.Timestamp = now
			} else {
				s.log.WarnContext(ctx, "Unable to retrieve user data", "user_id", id)
			}
		}

		if needsGuildData {
			s.status(fmt.Sprintf("Retrieving server data for %s", data.Label(id)))
			member, err := executeOperation(ctx, s.runtime, []any{"operation", "GetGuildMember", "guild_id", guildID, "user_id", id},
				func(ctx context.Context) (*domain.GuildMember, error) { return s.api.GetGuildMember(ctx, guildID, id) })

			// При ошибке сохраняется пустая запись с текущим временем: повтор только после устаревания.
			entry := domain.GuildUserData{Timestamp: now}
			if err == nil && member != nil {
				entry.Nick = member.Nick
				entry.Roles = member.Roles
				entry.JoinedAt = member.JoinedAt
			} else {
				s.log.WarnContext(ctx, "Unable to retrieve guild member data", "user_id", id, "guild_id", guildID)
			}
			if data.Guilds == nil {
				data.Guilds = make(map[string]domain.GuildUserData)
			}
			data.Guilds[guildID] = entry
		}

		out[id] = data
		fetched++
	}

	s.status("")
	return out
}

// BuildReactionMap загружает пользователей для каждой реакции каждого сообщения.
// Обычные и супер-реакции запрашиваются отдельно. Таблица пользователей пополняется
// по мере загрузки страниц.
func (s *EnrichmentService) BuildReactionMap(ctx context.Context, messages []domain.Message, reactions domain.ReactionMap, users domain.UserMap) (domain.ReactionMap, domain.UserMap) {
	outReactions := reactions.Clone()
	outUsers := users.Clone()

	var withReactions []domain.Message
	for _, msg := range messages {
		if msg.HasReactions() {
			withReactions = append(withReactions, msg)
		}
	}

	for i, msg := range withReactions {
		if s.stopped(ctx) {
			break
		}
		byEmoji := make(map[string][]domain.ReactingUser, len(msg.Reactions))
		outReactions[msg.ID] = byEmoji

		for _, reaction := range msg.Reactions {
			key := reaction.Emoji.Encode()
			s.status(fmt.Sprintf("Retrieving users who reacted with %s for message %d of %d",
				emojiLabel(reaction.Emoji), i+1, len(withReactions)))
			if s.stopped(ctx) || key == "" {
				break
			}
			byEmoji[key] = s.fetchReactingUsers(ctx, msg, key, outUsers)
		}
	}

	s.status("")
	return outReactions, outUsers
}

func (s *EnrichmentService) fetchReactingUsers(ctx context.Context, msg domain.Message, emoji string, users domain.UserMap) []domain.ReactingUser {
	var out []domain.ReactingUser
	for _, reactionType := range []domain.ReactionType{domain.ReactionTypeNormal, domain.ReactionTypeBurst} {
		fetch := func(ctx context.Context, lastID string) ([]domain.User, error) {
			return executeOperation(ctx, s.runtime,
				[]any{"operation", "GetReactions", "message_id", msg.ID, "emoji", emoji, "type", reactionType},
				func(ctx context.Context) ([]domain.User, error) {
					return s.api.GetReactions(ctx, msg.ChannelID, msg.ID, emoji, reactionType, lastID, DefaultPageSize)
				})
		}
		onBatch := func(batch []domain.User) {
			now := s.now()
			for _, u := range batch {
				data := users[u.ID]
				data.UserName = u.Username
				data.DisplayName = u.GlobalName
				data.Avatar = u.Avatar
				data.Timestamp = now
				users[u.ID] = data
			}
		}

		reacted := Paginate(ctx, s.stop, fetch, onBatch, DefaultPageSize)
		for _, u := range reacted {
			out = append(out, domain.ReactingUser{ID: u.ID, Burst: reactionType == domain.ReactionTypeBurst})
		}
	}
	return out
}

func emojiLabel(e domain.Emoji) string {
	name := e.Name
	if name == "" {
		name = "unknown"
	}
	if e.ID != "" {
		return ":" + name + ":"
	}
	return name
}
