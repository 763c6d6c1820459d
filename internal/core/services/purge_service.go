package services

import (
	"context"
	"slices"

	"discord-chat-manager/internal/domain"
)

// PurgeConfig хранит настройки чистки.
type PurgeConfig struct {
	// RetainAttachedMedia оставляет вложения собственных сообщений: очищается только текст.
	RetainAttachedMedia bool
	// ReactionRemovalFrom - пользователи, чьи реакции снимаются с чужих сообщений.
	ReactionRemovalFrom []string
}

// PurgeTarget - сервер или ЛС, по которому идет чистка.
type PurgeTarget struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// PurgeState - данные, общие для всех целей чистки.
type PurgeState struct {
	CurrentUserID string
	Users         domain.UserMap
	Reactions     domain.ReactionMap
}

// PurgeTargetReport - итоги чистки одной цели.
type PurgeTargetReport struct {
	Target           PurgeTarget `json:"target"`
	Windows          int         `json:"windows"`
	Processed        int         `json:"processed"`
	Deleted          int         `json:"deleted"`
	Edited           int         `json:"edited"`
	ReactionsRemoved int         `json:"reactions_removed"`
	Failed           int         `json:"failed"`
	Stopped          bool        `json:"stopped"`
}

// PurgeReport - итоги чистки всех целей.
type PurgeReport struct {
	Targets []PurgeTargetReport `json:"targets"`
}

// PurgeService многократно запрашивает поиск и удаляет найденное, пока выдача
// не перестанет приносить новые сообщения.
type PurgeService struct {
	runtime
	retrieval *RetrievalService
	mutation  *MutationService
	config    PurgeConfig
}

// NewPurgeService создает новый PurgeService.
func NewPurgeService(retrieval *RetrievalService, mutation *MutationService, cfg PurgeConfig, opts ...Option) *PurgeService {
	return &PurgeService{
		runtime:   newRuntime(opts),
		retrieval: retrieval,
		mutation:  mutation,
		config:    cfg,
	}
}

// Purge обрабатывает цели последовательно.
//
// Удаление сдвигает поисковую выдачу, поэтому окно запрашивается повторно: при
// изменении общего числа результатов смещение сбрасывается в ноль. Чистка цели
// завершается, когда два прохода подряд начинаются с нулевого смещения и не
// находят новых сообщений, или когда поиск сообщает, что выдача исчерпана.
func (s *PurgeService) Purge(ctx context.Context, targets []PurgeTarget, criteria domain.SearchCriteria, state PurgeState) PurgeReport {
	criteria = s.defaultCriteria(criteria, state.CurrentUserID)

	s.reporter.SetModifying(true)
	defer func() {
		s.reporter.SetProgress(domain.Progress{})
		s.reporter.SetModifying(false)
	}()

	var report PurgeReport
	for _, target := range targets {
		if s.stopped(ctx) {
			break
		}
		s.log.InfoContext(ctx, "Starting purge", "guild_id", target.GuildID, "channel_id", target.ChannelID)
		tr := s.purgeTarget(ctx, target, criteria, &state)
		s.log.InfoContext(ctx, "Purge finished",
			"guild_id", target.GuildID,
			"channel_id", target.ChannelID,
			"windows", tr.Windows,
			"deleted", tr.Deleted,
			"edited", tr.Edited,
			"failed", tr.Failed,
		)
		report.Targets = append(report.Targets, tr)
	}
	return report
}

// defaultCriteria ограничивает поиск собственными сообщениями, если автор не задан.
// В режиме снятия реакций ищутся и чужие сообщения.
func (s *PurgeService) defaultCriteria(criteria domain.SearchCriteria, currentUserID string) domain.SearchCriteria {
	out := criteria.Clone()
	if len(out.UserIDs) == 0 && len(s.config.ReactionRemovalFrom) == 0 && currentUserID != "" {
		out.UserIDs = []string{currentUserID}
	}
	return out
}

func (s *PurgeService) purgeTarget(ctx context.Context, target PurgeTarget, criteria domain.SearchCriteria, state *PurgeState) PurgeTargetReport {
	tr := PurgeTargetReport{Target: target}

	offset := domain.StartOffset
	total := 0
	overrides := domain.OverridesFrom(criteria)
	isResetPurge := false
	trackedTotal := 0
	var tracked []string
	trackedSet := make(map[string]struct{})
	var skipThreadIDs []string
	var threads []domain.Channel

	for {
		if s.stopped(ctx) {
			tr.Stopped = true
			return tr
		}

		// Возможное завершение: если этот проход не найдет новых сообщений.
		if offset == domain.StartOffset {
			isResetPurge = true
		}
		s.reporter.SetProgress(domain.Progress{Entity: domain.PurgeWindow{Offset: offset, Total: total}})

		res, err := s.retrieval.Retrieve(ctx, RetrieveRequest{
			GuildID:   target.GuildID,
			ChannelID: target.ChannelID,
			Options: RetrieveOptions{
				ExcludeReactions:   true,
				ExcludeUserLookups: true,
				StartOffset:        offset,
				EndOffset:          offset + domain.OffsetIncrement,
				CriteriaOverrides:  overrides,
			},
		}, RetrievalState{
			Criteria:            criteria,
			Users:               state.Users,
			Reactions:           state.Reactions,
			ReactionRemovalMode: len(s.config.ReactionRemovalFrom) > 0,
		})
		if err != nil {
			s.log.WarnContext(ctx, "Purge retrieval failed", "error", err)
			return tr
		}
		tr.Windows++
		state.Users, state.Reactions = res.Users, res.Reactions
		overrides = domain.OverridesFrom(res.Criteria)
		offset, total = res.Offset, res.TotalMessages
		threads = domain.UniqueChannels(threads, res.Threads)

		// Выдача сдвинулась после удалений: нужен новый проход с начала.
		if trackedTotal != 0 && total != trackedTotal {
			offset = domain.StartOffset
			isResetPurge = false
		}
		trackedTotal = total

		skipMessageIDs := slices.Clone(tracked)
		for _, m := range res.Messages {
			if _, ok := trackedSet[m.ID]; !ok {
				trackedSet[m.ID] = struct{}{}
				tracked = append(tracked, m.ID)
				isResetPurge = false
			}
		}

		// Два прохода с нулевого смещения без новых сообщений.
		if offset == domain.StartOffset && isResetPurge {
			return tr
		}

		skipThreadIDs, threads = s.purgeMessages(ctx, res.Messages, skipThreadIDs, skipMessageIDs, threads, state, &tr)

		if IsSearchComplete(offset, total) {
			return tr
		}
	}
}

// purgeMessages применяет политику чистки к окну и возвращает обновленные списки тредов.
func (s *PurgeService) purgeMessages(ctx context.Context, messages []domain.Message, skipThreadIDs, skipMessageIDs []string, threads []domain.Channel, state *PurgeState, tr *PurgeTargetReport) ([]string, []domain.Channel) {
	res := MutationResult{MutationState: MutationState{
		Messages:      slices.Clone(messages),
		Threads:       threads,
		SkipThreadIDs: skipThreadIDs,
		Reactions:     state.Reactions,
		Users:         state.Users,
		CurrentUserID: state.CurrentUserID,
	}}
	res.MutationState = res.clone()

	for i, msg := range messages {
		if s.stopped(ctx) {
			break
		}
		if slices.Contains(skipMessageIDs, msg.ID) {
			continue
		}

		cfg, ok := s.deleteConfigFor(msg, state.CurrentUserID)
		if !ok {
			continue
		}
		tr.Processed++
		s.mutation.deleteOne(ctx, msg, cfg, i+1, len(messages), &res)
	}

	tr.Deleted += res.Deleted
	tr.Edited += res.Edited
	tr.ReactionsRemoved += res.ReactionsRemoved
	tr.Failed += res.Failed
	state.Reactions = res.Reactions
	return res.SkipThreadIDs, res.Threads
}

// deleteConfigFor выбирает действие для сообщения: собственные сообщения удаляются,
// с чужих снимаются реакции указанных пользователей.
func (s *PurgeService) deleteConfigFor(msg domain.Message, currentUserID string) (domain.DeleteConfig, bool) {
	if msg.Author.ID == currentUserID && currentUserID != "" {
		return domain.DeleteConfig{
			Attachments: !s.config.RetainAttachedMedia,
			Messages:    true,
		}, true
	}

	if len(s.config.ReactionRemovalFrom) == 0 || !msg.HasReactions() {
		return domain.DeleteConfig{}, false
	}
	emojis := make([]string, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		emojis = append(emojis, r.Emoji.Encode())
	}
	return domain.DeleteConfig{
		Reactions:       true,
		ReactingUserIDs: slices.Clone(s.config.ReactionRemovalFrom),
		Emojis:          emojis,
	}, true
}
