package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"discord-chat-manager/internal/core/services"
	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// ErrEmptyText возвращается, если для правки не задан текст.
var ErrEmptyText = errors.New("не задан текст для правки сообщений")

// Config - параметры сервисов ядра для всех задач.
type Config struct {
	Enrichment       services.EnrichmentConfig
	Retrieval        services.RetrievalConfig
	Purge            services.PurgeConfig
	Export           services.ExportConfig
	OperationTimeout time.Duration
}

// Run - окружение одной задачи: куда сообщать о ходе работы и где проверять остановку.
type Run struct {
	Reporter ports.Reporter
	Stop     ports.StopSignal
}

// SearchRequest - цель, критерии поиска и фильтры.
type SearchRequest struct {
	GuildID     string                `json:"guild_id,omitempty"`
	ChannelID   string                `json:"channel_id,omitempty"`
	Criteria    domain.SearchCriteria `json:"criteria"`
	Filters     []domain.Filter       `json:"filters,omitempty"`
	SelectedIDs []string              `json:"selected_ids,omitempty"`
}

// DeleteRequest - удаление найденных сообщений.
type DeleteRequest struct {
	SearchRequest
	Config domain.DeleteConfig `json:"config"`
}

// EditRequest - замена текста найденных сообщений.
type EditRequest struct {
	SearchRequest
	Text string `json:"text"`
}

// PurgeRequest - чистка нескольких серверов и ЛС.
type PurgeRequest struct {
	GuildIDs   []string              `json:"guild_ids,omitempty"`
	ChannelIDs []string              `json:"channel_ids,omitempty"`
	Criteria   domain.SearchCriteria `json:"criteria"`
}

// ExportRequest - экспорт найденных сообщений в архив.
type ExportRequest struct {
	SearchRequest
	Format domain.ExportFormat `json:"format,omitempty"`
}

// SearchResult - отфильтрованные сообщения и выбор.
type SearchResult struct {
	domain.FilterResult
	Threads       []domain.Channel `json:"threads,omitempty"`
	TotalMessages int              `json:"total_messages"`
}

// MutationSummary - итоги удаления или правки.
type MutationSummary struct {
	Processed        int  `json:"processed"`
	Deleted          int  `json:"deleted"`
	Edited           int  `json:"edited"`
	ReactionsRemoved int  `json:"reactions_removed"`
	Skipped          int  `json:"skipped"`
	Failed           int  `json:"failed"`
	Stopped          bool `json:"stopped"`
}

// Jobs выполняет задачи сервера поверх сервисов ядра. Таблица пользователей
// и текущий пользователь живут в памяти процесса и общие для всех задач.
type Jobs struct {
	api        ports.DiscordAPI
	downloader ports.AssetDownloader
	cache      ports.AssetCache
	archives   ports.ArchiveFactory
	formatters map[domain.ExportFormat]ports.Formatter
	cfg        Config
	log        *slog.Logger

	mu          sync.Mutex
	currentUser *domain.User
	users       domain.UserMap
	guilds      map[string]*domain.Guild
}

// NewJobs создает новый экземпляр Jobs.
func NewJobs(
	api ports.DiscordAPI,
	downloader ports.AssetDownloader,
	cache ports.AssetCache,
	archives ports.ArchiveFactory,
	formatters map[domain.ExportFormat]ports.Formatter,
	cfg Config,
	log *slog.Logger,
) *Jobs {
	if log == nil {
		log = slog.Default()
	}
	return &Jobs{
		api:        api,
		downloader: downloader,
		cache:      cache,
		archives:   archives,
		formatters: formatters,
		cfg:        cfg,
		log:        log,
		users:      domain.UserMap{},
		guilds:     make(map[string]*domain.Guild),
	}
}

// pipeline - сервисы ядра, собранные для одной задачи.
type pipeline struct {
	retrieval *services.RetrievalService
	mutation  *services.MutationService
	purge     *services.PurgeService
	export    *services.ExportService
}

func (j *Jobs) pipeline(run Run) pipeline {
	opts := []services.Option{
		services.WithLogger(j.log),
		services.WithReporter(run.Reporter),
		services.WithStopSignal(run.Stop),
		services.WithOperationTimeout(j.cfg.OperationTimeout),
	}
	threads := services.NewThreadService(j.api, opts...)
	enrichment := services.NewEnrichmentService(j.api, j.cfg.Enrichment, opts...)
	retrieval := services.NewRetrievalService(j.api, enrichment, threads, j.cfg.Retrieval, opts...)
	mutation := services.NewMutationService(j.api, threads, opts...)

	return pipeline{
		retrieval: retrieval,
		mutation:  mutation,
		purge:     services.NewPurgeService(retrieval, mutation, j.cfg.Purge, opts...),
		export:    services.NewExportService(retrieval, j.downloader, j.cache, j.archives, j.formatters, j.cfg.Export, opts...),
	}
}

// Search получает сообщения цели и применяет фильтры.
func (j *Jobs) Search(ctx context.Context, req SearchRequest, run Run) (*SearchResult, error) {
	res, err := j.retrieve(ctx, j.pipeline(run), req, false)
	if err != nil {
		return nil, err
	}

	filtered := services.FilterMessages(res.Messages, req.Filters, res.Threads, req.SelectedIDs)
	j.log.InfoContext(ctx, "Search finished", "retrieved", len(res.Messages), "visible", len(filtered.Messages))
	return &SearchResult{FilterResult: filtered, Threads: res.Threads, TotalMessages: res.TotalMessages}, nil
}

// Delete удаляет найденные сообщения согласно настройке удаления.
func (j *Jobs) Delete(ctx context.Context, req DeleteRequest, run Run) (*MutationSummary, error) {
	if !req.Config.Attachments && !req.Config.Messages && !req.Config.Reactions {
		return nil, errors.New("не выбрано, что удалять: attachments, messages или reactions")
	}
	p := j.pipeline(run)
	targets, state, err := j.prepareMutation(ctx, p, req.SearchRequest, req.Config.Reactions)
	if err != nil {
		return nil, err
	}
	res := p.mutation.DeleteMessages(ctx, targets, req.Config, state)
	return summarize(len(targets), res, run.Stop), nil
}

// Edit заменяет текст найденных сообщений.
func (j *Jobs) Edit(ctx context.Context, req EditRequest, run Run) (*MutationSummary, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	p := j.pipeline(run)
	targets, state, err := j.prepareMutation(ctx, p, req.SearchRequest, false)
	if err != nil {
		return nil, err
	}
	res := p.mutation.EditMessages(ctx, targets, req.Text, state)
	return summarize(len(targets), res, run.Stop), nil
}

// Purge чистит все перечисленные серверы и ЛС.
func (j *Jobs) Purge(ctx context.Context, req PurgeRequest, run Run) (*services.PurgeReport, error) {
	var errs []error
	if len(req.GuildIDs) == 0 && len(req.ChannelIDs) == 0 {
		errs = append(errs, errors.New("не заданы серверы или каналы для чистки"))
	}
	me, err := j.me(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	targets := make([]services.PurgeTarget, 0, len(req.GuildIDs)+len(req.ChannelIDs))
	for _, id := range req.GuildIDs {
		targets = append(targets, services.PurgeTarget{GuildID: id})
	}
	for _, id := range req.ChannelIDs {
		targets = append(targets, services.PurgeTarget{ChannelID: id})
	}

	state := services.PurgeState{CurrentUserID: me.ID, Users: j.snapshotUsers(), Reactions: domain.ReactionMap{}}
	report := j.pipeline(run).purge.Purge(ctx, targets, req.Criteria, state)
	return &report, nil
}

// Export выгружает найденные сообщения в архив.
func (j *Jobs) Export(ctx context.Context, req ExportRequest, run Run) (*services.ExportReport, error) {
	var guild *domain.Guild
	if req.GuildID != "" {
		g, err := j.guild(ctx, req.GuildID)
		if err != nil {
			return nil, err
		}
		guild = g
	}

	state := services.ExportState{
		Retrieval: services.RetrievalState{Users: j.snapshotUsers(), Criteria: req.Criteria},
		Guild:     guild,
	}
	report, err := j.pipeline(run).export.Export(ctx, services.ExportRequest{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		Format:    req.Format,
		Filters:   req.Filters,
	}, state)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}
	return report, nil
}

func (j *Jobs) retrieve(ctx context.Context, p pipeline, req SearchRequest, removeReactions bool) (*services.RetrievalResult, error) {
	res, err := p.retrieval.Retrieve(ctx, services.RetrieveRequest{GuildID: req.GuildID, ChannelID: req.ChannelID},
		services.RetrievalState{Users: j.snapshotUsers(), Criteria: req.Criteria, ReactionRemovalMode: removeReactions})
	if err != nil {
		return nil, err
	}
	j.mergeUsers(res.Users)
	return res, nil
}

// prepareMutation получает сообщения и выбирает цели: выбранные, если выбор
// не пуст, иначе все видимые после фильтров.
func (j *Jobs) prepareMutation(ctx context.Context, p pipeline, req SearchRequest, removeReactions bool) ([]domain.Message, services.MutationState, error) {
	me, err := j.me(ctx)
	if err != nil {
		return nil, services.MutationState{}, err
	}
	res, err := j.retrieve(ctx, p, req, removeReactions)
	if err != nil {
		return nil, services.MutationState{}, err
	}

	filtered := services.FilterMessages(res.Messages, req.Filters, res.Threads, req.SelectedIDs)
	targets := filtered.Messages
	if len(req.SelectedIDs) > 0 {
		targets = slices.DeleteFunc(slices.Clone(filtered.Messages), func(m domain.Message) bool {
			return !slices.Contains(filtered.SelectedIDs, m.ID)
		})
	}

	state := services.MutationState{
		Messages:      res.Messages,
		Threads:       res.Threads,
		Reactions:     res.Reactions,
		Users:         res.Users,
		CurrentUserID: me.ID,
	}
	return targets, state, nil
}

func summarize(processed int, res services.MutationResult, stop ports.StopSignal) *MutationSummary {
	return &MutationSummary{
		Processed:        processed,
		Deleted:          res.Deleted,
		Edited:           res.Edited,
		ReactionsRemoved: res.ReactionsRemoved,
		Skipped:          res.Skipped,
		Failed:           res.Failed,
		Stopped:          stop != nil && stop.Stopped(),
	}
}

// me возвращает текущего пользователя, запрашивая его один раз.
func (j *Jobs) me(ctx context.Context) (*domain.User, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentUser != nil {
		return j.currentUser, nil
	}
	u, err := j.api.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить текущего пользователя: %w", err)
	}
	j.currentUser = u
	return u, nil
}

func (j *Jobs) guild(ctx context.Context, id string) (*domain.Guild, error) {
	j.mu.Lock()
	g, ok := j.guilds[id]
	j.mu.Unlock()
	if ok {
		return g, nil
	}

	g, err := j.api.GetGuild(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить сервер %s: %w", id, err)
	}
	j.mu.Lock()
	j.guilds[id] = g
	j.mu.Unlock()
	return g, nil
}

func (j *Jobs) snapshotUsers() domain.UserMap {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.users.Clone()
}

func (j *Jobs) mergeUsers(users domain.UserMap) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for id, data := range users {
		j.users[id] = data.Clone()
	}
}
