package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// ErrNoTarget возвращается, когда не задан ни сервер, ни канал.
var ErrNoTarget = errors.New("не задан сервер или канал для получения сообщений")

// RetrieveOptions управляют одним получением сообщений.
type RetrieveOptions struct {
	ExcludeReactions   bool
	ExcludeUserLookups bool
	StartOffset        int
	// EndOffset ограничивает поиск; 0 - без ограничения.
	EndOffset         int
	CriteriaOverrides *domain.CriteriaOverrides
}

// RetrieveRequest - цель получения сообщений.
type RetrieveRequest struct {
	GuildID   string
	ChannelID string
	Options   RetrieveOptions
}

// RetrievalState - снимок состояния, которым владеет вызывающая сторона.
type RetrievalState struct {
	Channels  []domain.Channel
	DMs       []domain.Channel
	Threads   []domain.Channel
	Users     domain.UserMap
	Reactions domain.ReactionMap
	Criteria  domain.SearchCriteria
	// ReactionRemovalMode - вызывающая сторона собирается удалять реакции.
	ReactionRemovalMode bool
}

// RetrievalResult - новые версии данных после получения.
type RetrievalResult struct {
	Messages      []domain.Message
	Threads       []domain.Channel
	Offset        int
	Criteria      domain.SearchCriteria
	TotalMessages int
	Users         domain.UserMap
	Reactions     domain.ReactionMap
}

// RetrievalConfig хранит конфигурацию для RetrievalService.
type RetrievalConfig struct {
	ReactionsEnabled bool
}

// RetrievalService собирает все сообщения цели: поиском или постраничным списком,
// вместе с тредами, реакциями и данными пользователей.
type RetrievalService struct {
	runtime
	api        ports.DiscordAPI
	enrichment ports.EnrichmentService
	threads    *ThreadService
	config     RetrievalConfig
}

// NewRetrievalService создает новый RetrievalService.
func NewRetrievalService(api ports.DiscordAPI, enrichment ports.EnrichmentService, threads *ThreadService, cfg RetrievalConfig, opts ...Option) *RetrievalService {
	return &RetrievalService{
		runtime:    newRuntime(opts),
		api:        api,
		enrichment: enrichment,
		threads:    threads,
		config:     cfg,
	}
}

// Retrieve получает сообщения цели. Отмена не является ошибкой: возвращается то,
// что успели собрать.
func (s *RetrievalService) Retrieve(ctx context.Context, req RetrieveRequest, state RetrievalState) (*RetrievalResult, error) {
	if req.GuildID == "" && req.ChannelID == "" {
		return nil, ErrNoTarget
	}

	criteria := req.Options.CriteriaOverrides.Apply(state.Criteria)
	requiresReactions := state.ReactionRemovalMode || (!req.Options.ExcludeReactions && s.config.ReactionsEnabled)

	res := &RetrievalResult{
		Criteria:  criteria,
		Users:     state.Users,
		Reactions: state.Reactions,
	}
	if res.Users == nil {
		res.Users = domain.UserMap{}
	}
	if res.Reactions == nil {
		res.Reactions = domain.ReactionMap{}
	}

	s.log.InfoContext(ctx, "Starting message retrieval",
		"guild_id", req.GuildID,
		"channel_id", req.ChannelID,
		"search", criteria.IsActive(),
	)

	switch {
	case criteria.IsActive():
		channel, _ := s.findChannel(ctx, state, req.ChannelID)
		page := s.search(ctx, req.GuildID, req.ChannelID, channel, criteria, req.Options)
		res.Messages = page.messages
		res.Threads = page.threads
		res.Offset = page.offset
		res.Criteria = page.criteria
		res.TotalMessages = page.total
		if requiresReactions {
			res.Messages = s.resolveMessageReactions(ctx, res.Messages)
		}
	case req.ChannelID != "":
		channel, ok := s.findChannel(ctx, state, req.ChannelID)
		if ok {
			res.Messages, res.Threads = s.listing(ctx, channel, criteria)
		}
	}

	if !s.stopped(ctx) {
		if requiresReactions {
			res.Reactions, res.Users = s.enrichment.BuildReactionMap(ctx, res.Messages, res.Reactions, res.Users)
		}
		if !req.Options.ExcludeUserLookups {
			res.Users = s.enrichment.EnrichUsers(ctx, res.Messages, req.GuildID, res.Users, res.Reactions)
		}
	}

	s.status("")
	s.log.InfoContext(ctx, "Message retrieval finished",
		"messages", len(res.Messages),
		"threads", len(res.Threads),
		"total", res.TotalMessages,
	)
	return res, nil
}

// findChannel ищет канал среди загруженных, иначе запрашивает его у API.
func (s *RetrievalService) findChannel(ctx context.Context, state RetrievalState, id string) (domain.Channel, bool) {
	if c, ok := FindChannel(state.Channels, slices.Concat(state.DMs, state.Threads), id); ok {
		return c, true
	}
	if id == "" {
		return domain.Channel{}, false
	}
	c, err := executeOperation(ctx, s.runtime, []any{"operation", "GetChannel", "channel_id", id},
		func(ctx context.Context) (*domain.Channel, error) { return s.api.GetChannel(ctx, id) })
	if err != nil || c == nil {
		return domain.Channel{}, false
	}
	return *c, true
}

type searchPage struct {
	messages []domain.Message
	threads  []domain.Channel
	offset   int
	criteria domain.SearchCriteria
	total    int
}

// search листает поисковую выдачу шагом OffsetIncrement. При достижении MaxOffset
// смещение сбрасывается, а граница "до даты" сдвигается на время последнего сообщения.
func (s *RetrievalService) search(ctx context.Context, guildID, channelID string, channel domain.Channel, criteria domain.SearchCriteria, opts RetrieveOptions) searchPage {
	page := searchPage{offset: opts.StartOffset, criteria: criteria}
	ended := false

	for !ended {
		if s.stopped(ctx) {
			break
		}

		offset, current := page.offset, page.criteria
		result, err := executeOperation(ctx, s.runtime,
			[]any{"operation", "SearchMessages", "guild_id", guildID, "channel_id", channelID, "offset", offset},
			func(ctx context.Context) (*domain.SearchResult, error) {
				return s.api.SearchMessages(ctx, guildID, channelID, offset, current)
			})
		if err != nil || result == nil {
			break
		}

		page.total = result.TotalResults
		messages := result.Flatten()
		if result.TotalResults == 0 && len(messages) == 0 {
			break
		}

		page.threads = domain.UniqueChannels(page.threads, result.Threads)

		var last domain.Message
		if len(messages) > 0 {
			last = messages[len(messages)-1]
		}
		next := nextSearchData(last, page.offset, page.total, ended, page.criteria, opts.EndOffset)
		page.offset, ended, page.criteria = next.offset, next.ended, next.criteria

		for _, m := range messages {
			if m.Type.IsAllowed() {
				page.messages = append(page.messages, m)
			}
		}

		if channel.IsForumLike() {
			s.status(fmt.Sprintf("Retrieved %d threads", len(page.threads)))
		} else {
			s.status(fmt.Sprintf("Retrieved %d of %d messages", len(page.messages), page.total))
		}
	}

	return page
}

type nextSearch struct {
	offset   int
	ended    bool
	criteria domain.SearchCriteria
}

// nextSearchData вычисляет следующее смещение поиска.
func nextSearchData(last domain.Message, offset, total int, ended bool, criteria domain.SearchCriteria, endOffset int) nextSearch {
	next := offset + domain.OffsetIncrement
	reachedEndOffset := endOffset > 0 && next >= endOffset
	reachedAll := next >= total
	stop := ended || reachedEndOffset || reachedAll

	if offset == domain.MaxOffset {
		out := criteria.Clone()
		if !last.Timestamp.IsZero() {
			before := last.Timestamp
			out.SearchBeforeDate = &before
		}
		return nextSearch{offset: domain.StartOffset, ended: stop, criteria: out}
	}

	if reachedAll {
		next = domain.StartOffset
	}
	return nextSearch{offset: next, ended: stop, criteria: criteria}
}

// IsSearchComplete сообщает, что смещение достигло конца выдачи.
func IsSearchComplete(offset, total int) bool {
	return offset >= total
}

// resolveMessageReactions дополняет реакции сообщений поиска: поиск их не возвращает.
// Сообщения запрашиваются "вокруг" каждого попадания; соседние попадания берутся из кэша.
func (s *RetrievalService) resolveMessageReactions(ctx context.Context, messages []domain.Message) []domain.Message {
	tracked := make(map[string][]domain.Reaction)
	for i, msg := range messages {
		if s.stopped(ctx) {
			break
		}
		if _, ok := tracked[msg.ID]; ok {
			continue
		}
		s.status(fmt.Sprintf("Searching for reactions %d of %d", i+1, len(messages)))
		around, err := executeOperation(ctx, s.runtime,
			[]any{"operation", "MessagesAround", "channel_id", msg.ChannelID, "message_id", msg.ID},
			func(ctx context.Context) ([]domain.Message, error) {
				return s.api.MessagesAround(ctx, msg.ChannelID, msg.ID, DefaultPageSize)
			})
		if err != nil {
			continue
		}
		for _, m := range around {
			tracked[m.ID] = m.Reactions
		}
	}

	out := make([]domain.Message, len(messages))
	for i, msg := range messages {
		msg.Reactions = tracked[msg.ID]
		out[i] = msg
	}
	return out
}

// listing получает сообщения канала постранично, затем сообщения всех его тредов.
// Форумы не имеют сообщений верхнего уровня: их треды находятся через поиск.
func (s *RetrievalService) listing(ctx context.Context, channel domain.Channel, criteria domain.SearchCriteria) ([]domain.Message, []domain.Channel) {
	var messages []domain.Message
	var threads []domain.Channel

	if channel.IsForumLike() {
		forumCriteria := criteria.Clone()
		forumCriteria.ChannelIDs = []string{channel.ID}
		page := s.search(ctx, channel.GuildID, channel.ID, channel, forumCriteria, RetrieveOptions{})
		threads = domain.UniqueChannels(page.threads)
	} else {
		messages = s.listChannel(ctx, channel.ID)
	}

	if channel.IsDM() {
		return messages, threads
	}

	threads = domain.UniqueChannels(threads, ThreadsFromMessages(messages, threads))
	threads = domain.UniqueChannels(threads, s.threads.ArchivedThreads(ctx, channel.ID, threads))

	for _, thread := range threads {
		if s.stopped(ctx) {
			break
		}
		s.status(fmt.Sprintf("Retrieving messages for thread - %s", thread.DisplayName()))
		messages = append(messages, s.listChannel(ctx, thread.ID)...)
	}

	return messages, threads
}

// listChannel возвращает разрешенные сообщения одного канала.
func (s *RetrievalService) listChannel(ctx context.Context, channelID string) []domain.Message {
	count := 0
	fetch := func(ctx context.Context, lastID string) ([]domain.Message, error) {
		return executeOperation(ctx, s.runtime,
			[]any{"operation", "ListMessages", "channel_id", channelID, "before", lastID},
			func(ctx context.Context) ([]domain.Message, error) {
				return s.api.ListMessages(ctx, channelID, lastID, DefaultPageSize)
			})
	}
	onBatch := func(batch []domain.Message) {
		count += len(batch)
		s.status(fmt.Sprintf("Retrieved %d messages", count))
	}

	all := Paginate(ctx, s.stop, fetch, onBatch, DefaultPageSize)
	out := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if m.Type.IsAllowed() {
			out = append(out, m)
		}
	}
	return out
}
