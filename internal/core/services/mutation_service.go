package services

import (
	"context"
	"slices"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// Тексты уведомлений массовых операций.
const (
	msgPermissionMissingSkipping     = "Permission missing for message, skipping"
	msgPermissionMissingSkippingEdit = "Permission missing for message, skipping edit"
	msgMissingPermissionToModify     = "You do not have permission to modify this message!"
	msgReactionRemoveFailedFor       = "Failed to remove reaction for"
	msgAttachmentRequiresRemoval     = "Unable to remove attachment, the entire message must be deleted"
	msgMissingPermissionAttachment   = "You do not have permission to remove this attachment"
)

// MutationState - снимок данных, которые изменяет массовая операция.
type MutationState struct {
	Messages      []domain.Message
	Threads       []domain.Channel
	SkipThreadIDs []string
	Reactions     domain.ReactionMap
	Users         domain.UserMap
	CurrentUserID string
}

func (st MutationState) clone() MutationState {
	out := st
	out.Messages = slices.Clone(st.Messages)
	out.Threads = slices.Clone(st.Threads)
	out.SkipThreadIDs = slices.Clone(st.SkipThreadIDs)
	if st.Reactions != nil {
		out.Reactions = st.Reactions.Clone()
	} else {
		out.Reactions = domain.ReactionMap{}
	}
	return out
}

// MutationResult - состояние после операции и ее итоги.
// Локальный набор сообщений отражает только подтвержденные API изменения.
type MutationResult struct {
	MutationState
	Deleted          int
	Edited           int
	ReactionsRemoved int
	Skipped          int
	Failed           int
}

// MutationService выполняет массовые удаления и правки сообщений.
type MutationService struct {
	runtime
	api     ports.DiscordAPI
	threads *ThreadService
}

// NewMutationService создает новый MutationService.
func NewMutationService(api ports.DiscordAPI, threads *ThreadService, opts ...Option) *MutationService {
	return &MutationService{runtime: newRuntime(opts), api: api, threads: threads}
}

// DeleteMessages удаляет сообщения согласно cfg. Для каждого сообщения выбирается
// полное удаление, правка или снятие реакций; если не подходит ничего, обработка
// пакета завершается.
func (s *MutationService) DeleteMessages(ctx context.Context, messages []domain.Message, cfg domain.DeleteConfig, state MutationState) MutationResult {
	res := MutationResult{MutationState: state.clone()}

	if cfg.Reactions && !slices.ContainsFunc(messages, domain.Message.HasReactions) {
		return res
	}

	s.reporter.SetModifying(true)
	defer s.resetModify()

	for i, msg := range messages {
		if s.stopped(ctx) {
			break
		}
		if !s.deleteOne(ctx, msg, cfg, i+1, len(messages), &res) {
			break
		}
	}

	return res
}

// deleteOne обрабатывает одно сообщение пакета. false означает, что пакет нужно завершить.
func (s *MutationService) deleteOne(ctx context.Context, msg domain.Message, cfg domain.DeleteConfig, index, total int, res *MutationResult) bool {
	s.liftRestrictions(ctx, msg.ChannelID, &res.MutationState)
	s.reporter.SetProgress(domain.Progress{Entity: msg, Index: index, Total: total})

	if slices.Contains(res.SkipThreadIDs, msg.ChannelID) {
		s.notify(msgPermissionMissingSkipping, time.Second)
		res.Skipped++
		return true
	}

	shouldDelete := msg.IsRemovable() &&
		((cfg.Attachments && cfg.Messages) ||
			(msg.Content == "" && cfg.Attachments) ||
			(len(msg.Attachments) == 0 && cfg.Messages))
	shouldEdit := cfg.Attachments || cfg.Messages
	shouldUnReact := cfg.Reactions && len(cfg.ReactingUserIDs) > 0 && len(cfg.Emojis) > 0

	switch {
	case shouldDelete:
		if s.stopped(ctx) {
			return false
		}
		if err := s.DeleteMessage(ctx, msg); err != nil {
			s.notify(msgMissingPermissionToModify, 2*time.Second)
			res.Failed++
			return true
		}
		res.Messages = removeMessage(res.Messages, msg.ID)
		res.Deleted++

	case shouldEdit:
		if s.stopped(ctx) {
			return false
		}
		patch := domain.PatchOf(msg)
		if cfg.Attachments {
			patch.Attachments = []domain.Attachment{}
		} else {
			patch.Content = ""
		}
		updated, err := s.EditMessage(ctx, msg, patch)
		if err != nil {
			s.notify(msgMissingPermissionToModify, 2*time.Second)
			res.Failed++
			return true
		}
		res.Messages = replaceMessage(res.Messages, updated)
		res.Edited++

	case shouldUnReact:
		if s.stopped(ctx) {
			return false
		}
		s.unReact(ctx, msg, index, total, cfg, res)

	default:
		return false
	}
	return true
}

// unReact снимает реакции всех пар (пользователь, эмодзи), известных карте реакций.
func (s *MutationService) unReact(ctx context.Context, msg domain.Message, index, total int, cfg domain.DeleteConfig, res *MutationResult) {
	for _, userID := range cfg.ReactingUserIDs {
		for _, emoji := range cfg.Emojis {
			if s.stopped(ctx) {
				return
			}
			if _, ok := res.Reactions.Find(msg.ID, emoji, userID); !ok {
				continue
			}

			s.reporter.SetProgress(domain.Progress{Entity: msg, Index: index, Total: total, Data1: userID, Data2: emoji})
			if !s.removeReaction(ctx, msg.ChannelID, msg.ID, emoji, userID, &res.MutationState) {
				name := res.Users[userID].Label(userID)
				s.notify(msgReactionRemoveFailedFor+" "+name, 2*time.Second)
				res.Failed++
				continue
			}
			res.ReactionsRemoved++
		}
	}
}

// EditMessages заменяет текст всех сообщений на text.
func (s *MutationService) EditMessages(ctx context.Context, messages []domain.Message, text string, state MutationState) MutationResult {
	res := MutationResult{MutationState: state.clone()}

	s.reporter.SetModifying(true)
	defer s.resetModify()

	for i, msg := range messages {
		if s.stopped(ctx) {
			break
		}

		s.liftRestrictions(ctx, msg.ChannelID, &res.MutationState)
		s.reporter.SetProgress(domain.Progress{Entity: msg, Index: i + 1, Total: len(messages)})

		if slices.Contains(res.SkipThreadIDs, msg.ChannelID) {
			s.notify(msgPermissionMissingSkippingEdit, time.Second)
			res.Skipped++
			continue
		}

		patch := domain.PatchOf(msg)
		patch.Content = text
		updated, err := s.EditMessage(ctx, msg, patch)
		if err != nil {
			s.notify(msgMissingPermissionToModify, 2*time.Second)
			res.Failed++
			continue
		}
		res.Messages = replaceMessage(res.Messages, updated)
		res.Edited++
	}

	return res
}

// DeleteMessage удаляет одно сообщение, не изменяя локальное состояние.
func (s *MutationService) DeleteMessage(ctx context.Context, msg domain.Message) error {
	return executeAction(ctx, s.runtime,
		[]any{"operation", "DeleteMessage", "channel_id", msg.ChannelID, "message_id", msg.ID},
		func(ctx context.Context) error { return s.api.DeleteMessage(ctx, msg.ChannelID, msg.ID) })
}

// EditMessage применяет patch к одному сообщению и возвращает версию из ответа API.
func (s *MutationService) EditMessage(ctx context.Context, msg domain.Message, patch domain.MessagePatch) (domain.Message, error) {
	updated, err := executeOperation(ctx, s.runtime,
		[]any{"operation", "EditMessage", "channel_id", msg.ChannelID, "message_id", msg.ID},
		func(ctx context.Context) (*domain.Message, error) {
			return s.api.EditMessage(ctx, msg.ChannelID, msg.ID, patch)
		})
	if err != nil {
		return msg, err
	}
	if updated == nil {
		out := msg
		out.Content = patch.Content
		out.Attachments = patch.Attachments
		return out, nil
	}
	return *updated, nil
}

// DeleteAttachment убирает одно вложение. Если после этого сообщение станет пустым,
// удаляется сообщение целиком.
func (s *MutationService) DeleteAttachment(ctx context.Context, msg domain.Message, attachmentID string, state MutationState) MutationResult {
	res := MutationResult{MutationState: state.clone()}

	s.liftRestrictions(ctx, msg.ChannelID, &res.MutationState)
	s.reporter.SetModifying(true)
	defer s.reporter.SetModifying(false)

	if msg.Content != "" || len(msg.Attachments) > 1 {
		patch := domain.PatchOf(msg)
		patch.Attachments = slices.DeleteFunc(patch.Attachments, func(a domain.Attachment) bool { return a.ID == attachmentID })
		updated, err := s.EditMessage(ctx, msg, patch)
		if err != nil {
			s.notify(msgAttachmentRequiresRemoval, 500*time.Millisecond)
			res.Failed++
			return res
		}
		res.Messages = replaceMessage(res.Messages, updated)
		res.Edited++
		s.reporter.SetProgress(domain.Progress{Entity: updated})
		return res
	}

	if err := s.DeleteMessage(ctx, msg); err != nil {
		s.notify(msgMissingPermissionAttachment, 500*time.Millisecond)
		res.Failed++
		return res
	}
	res.Messages = removeMessage(res.Messages, msg.ID)
	res.Deleted++
	s.reporter.SetProgress(domain.Progress{})
	return res
}

// DeleteReaction снимает реакцию пользователя и обновляет счетчики сообщения.
// Если сообщения или реакции нет в состоянии, делать нечего и API не вызывается.
func (s *MutationService) DeleteReaction(ctx context.Context, channelID, messageID, emoji, userID string, state MutationState) (MutationResult, bool) {
	res := MutationResult{MutationState: state.clone()}
	s.liftRestrictions(ctx, channelID, &res.MutationState)
	ok := s.removeReaction(ctx, channelID, messageID, emoji, userID, &res.MutationState)
	if ok {
		res.ReactionsRemoved++
	}
	return res, ok
}

func (s *MutationService) removeReaction(ctx context.Context, channelID, messageID, emoji, userID string, st *MutationState) bool {
	idx := slices.IndexFunc(st.Messages, func(m domain.Message) bool { return m.ID == messageID })
	if idx < 0 {
		return false
	}
	msg := st.Messages[idx]
	if !slices.ContainsFunc(msg.Reactions, func(r domain.Reaction) bool { return r.Emoji.Encode() == emoji }) {
		return false
	}

	entry, _ := st.Reactions.Find(messageID, emoji, userID)

	target := userID
	if userID == st.CurrentUserID {
		target = ""
	}
	err := executeAction(ctx, s.runtime,
		[]any{"operation", "DeleteReaction", "channel_id", channelID, "message_id", messageID, "emoji", emoji, "user_id", userID},
		func(ctx context.Context) error { return s.api.DeleteReaction(ctx, channelID, messageID, emoji, target) })
	if err != nil {
		return false
	}

	if byEmoji, ok := st.Reactions[messageID]; ok {
		byEmoji[emoji] = slices.DeleteFunc(byEmoji[emoji], func(u domain.ReactingUser) bool { return u.ID == userID })
	}

	updated := msg
	updated.Reactions = nil
	for _, r := range msg.Reactions {
		if r.Emoji.Encode() == emoji {
			if entry.Burst {
				r.CountDetails.Burst--
			} else {
				r.CountDetails.Normal--
			}
			r.Count--
		}
		if r.CountDetails.Normal > 0 || r.CountDetails.Burst > 0 {
			updated.Reactions = append(updated.Reactions, r)
		}
	}
	st.Messages[idx] = updated
	return true
}

// liftRestrictions снимает ограничения с треда сообщения и обновляет состояние.
func (s *MutationService) liftRestrictions(ctx context.Context, channelID string, st *MutationState) {
	lift := s.threads.LiftThreadRestrictions(ctx, channelID, st.SkipThreadIDs, st.Threads)
	st.SkipThreadIDs = lift.SkipIDs
	st.Threads = lift.Threads
}

func (s *MutationService) resetModify() {
	s.reporter.SetProgress(domain.Progress{})
	s.reporter.SetModifying(false)
}

func removeMessage(messages []domain.Message, id string) []domain.Message {
	return slices.DeleteFunc(messages, func(m domain.Message) bool { return m.ID == id })
}

func replaceMessage(messages []domain.Message, updated domain.Message) []domain.Message {
	for i := range messages {
		if messages[i].ID == updated.ID {
			messages[i] = updated
		}
	}
	return messages
}
