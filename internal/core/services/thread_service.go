package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// ThreadService обнаруживает треды и снимает с них ограничения перед изменениями.
type ThreadService struct {
	runtime
	api ports.DiscordAPI
}

// NewThreadService создает новый ThreadService.
func NewThreadService(api ports.DiscordAPI, opts ...Option) *ThreadService {
	return &ThreadService{runtime: newRuntime(opts), api: api}
}

// LiftResult - результат снятия ограничений с треда.
type LiftResult struct {
	// SkipIDs - треды, ограничения которых снять не удалось.
	SkipIDs []string
	// Threads - список тредов с обновленным состоянием.
	Threads []domain.Channel
}

// FindChannel ищет канал или ЛС по ID среди загруженных.
func FindChannel(channels, dms []domain.Channel, id string) (domain.Channel, bool) {
	if id == "" {
		return domain.Channel{}, false
	}
	for _, list := range [][]domain.Channel{channels, dms} {
		for _, c := range list {
			if c.ID == id {
				return c, true
			}
		}
	}
	return domain.Channel{}, false
}

// ThreadsFromMessages возвращает треды, на которые ссылаются сообщения и которых нет среди известных.
func ThreadsFromMessages(messages []domain.Message, known []domain.Channel) []domain.Channel {
	var found []domain.Channel
	for _, msg := range messages {
		if msg.Thread != nil {
			found = append(found, *msg.Thread)
		}
	}
	return excludeKnown(domain.UniqueChannels(found), known)
}

// ArchivedThreads загружает публичные и приватные архивные треды канала.
// Неудачный запрос списка не добавляет ничего и не прерывает второй запрос.
func (s *ThreadService) ArchivedThreads(ctx context.Context, channelID string, known []domain.Channel) []domain.Channel {
	if s.stopped(ctx) {
		return nil
	}

	var all []domain.Channel
	for _, private := range []bool{false, true} {
		all = append(all, s.listArchived(ctx, channelID, private)...)
	}

	if len(all) > 0 {
		s.status(fmt.Sprintf("Retrieved %d archived threads", len(all)))
	}
	return excludeKnown(domain.UniqueChannels(all), known)
}

// listArchived листает архив по archive_timestamp, пока API сообщает has_more.
func (s *ThreadService) listArchived(ctx context.Context, channelID string, private bool) []domain.Channel {
	var out []domain.Channel
	var before *time.Time
	for {
		if s.stopped(ctx) {
			return out
		}
		page, err := executeOperation(ctx, s.runtime,
			[]any{"operation", "ListArchivedThreads", "channel_id", channelID, "private", private},
			func(ctx context.Context) (*domain.ThreadList, error) {
				return s.api.ListArchivedThreads(ctx, channelID, private, before)
			})
		if err != nil || page == nil || len(page.Threads) == 0 {
			return out
		}
		out = append(out, page.Threads...)

		last := page.Threads[len(page.Threads)-1]
		if !page.HasMore || last.ThreadMetadata == nil || last.ThreadMetadata.ArchiveTimestamp == nil {
			return out
		}
		ts := *last.ThreadMetadata.ArchiveTimestamp
		if before != nil && !ts.Before(*before) {
			return out
		}
		before = &ts
	}
}

// UnarchiveThread снимает архивацию и блокировку треда.
func (s *ThreadService) UnarchiveThread(ctx context.Context, thread domain.Channel) (domain.Channel, bool) {
	archived, locked := false, false
	updated, err := executeOperation(ctx, s.runtime,
		[]any{"operation", "EditChannel", "channel_id", thread.ID},
		func(ctx context.Context) (*domain.Channel, error) {
			return s.api.EditChannel(ctx, thread.ID, domain.ChannelPatch{Archived: &archived, Locked: &locked})
		})
	if err != nil || updated == nil {
		s.status(fmt.Sprintf("Failed to un-archive thread - %s", thread.DisplayName()))
		return thread, false
	}

	s.status(fmt.Sprintf("Successfully un-archived thread - %s", updated.DisplayName()))
	return *updated, true
}

// LiftThreadRestrictions пытается разархивировать известный тред, если он ограничен и
// не находится в skipIDs. При неудаче ID треда добавляется в возвращаемый список пропуска,
// и повторные вызовы с этим списком не обращаются к API.
func (s *ThreadService) LiftThreadRestrictions(ctx context.Context, threadID string, skipIDs []string, threads []domain.Channel) LiftResult {
	res := LiftResult{
		SkipIDs: append([]string(nil), skipIDs...),
		Threads: append([]domain.Channel(nil), threads...),
	}

	idx := -1
	for i, t := range res.Threads {
		if t.ID == threadID {
			idx = i
			break
		}
	}
	if idx < 0 || !res.Threads[idx].IsRestricted() || slices.Contains(skipIDs, threadID) {
		return res
	}

	updated, ok := s.UnarchiveThread(ctx, res.Threads[idx])
	if !ok {
		res.SkipIDs = append(res.SkipIDs, threadID)
		return res
	}
	res.Threads[idx] = updated
	return res
}

func excludeKnown(list, known []domain.Channel) []domain.Channel {
	knownIDs := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownIDs[k.ID] = struct{}{}
	}
	var out []domain.Channel
	for _, c := range list {
		if _, ok := knownIDs[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
