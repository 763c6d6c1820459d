package domain

import (
	"slices"
	"time"
)

// MessageType - числовой код типа сообщения Discord.
type MessageType int

const (
	MessageTypeDefault              MessageType = 0
	MessageTypeRecipientAdd         MessageType = 1
	MessageTypeRecipientRemove      MessageType = 2
	MessageTypeCall                 MessageType = 3
	MessageTypeChannelNameChange    MessageType = 4
	MessageTypeChannelIconChange    MessageType = 5
	MessageTypeChannelPinnedMessage MessageType = 6
	MessageTypeUserJoin             MessageType = 7
	MessageTypeGuildBoost           MessageType = 8
	MessageTypeGuildBoostTier1      MessageType = 9
	MessageTypeGuildBoostTier2      MessageType = 10
	MessageTypeGuildBoostTier3      MessageType = 11
	MessageTypeChannelFollowAdd     MessageType = 12
	MessageTypeThreadCreated        MessageType = 18
	MessageTypeReply                MessageType = 19
	MessageTypeChatInputCommand     MessageType = 20
	MessageTypeThreadStarterMessage MessageType = 21
	MessageTypeGuildInviteReminder  MessageType = 22
	MessageTypeContextMenuCommand   MessageType = 23
	MessageTypeAutoModerationAction MessageType = 24
)

// allowedMessageTypes - типы, которые считаются пользовательским содержимым.
// Служебные сообщения вне этого списка отбрасываются при получении.
var allowedMessageTypes = map[MessageType]struct{}{
	MessageTypeDefault:              {},
	MessageTypeCall:                 {},
	MessageTypeChannelPinnedMessage: {},
	MessageTypeUserJoin:             {},
	MessageTypeGuildBoost:           {},
	MessageTypeGuildBoostTier1:      {},
	MessageTypeGuildBoostTier2:      {},
	MessageTypeGuildBoostTier3:      {},
	MessageTypeChannelFollowAdd:     {},
	MessageTypeThreadCreated:        {},
	MessageTypeReply:                {},
	MessageTypeChatInputCommand:     {},
	MessageTypeGuildInviteReminder:  {},
	MessageTypeContextMenuCommand:   {},
	MessageTypeAutoModerationAction: {},
}

// nonRemovableMessageTypes - системные типы, которые нельзя удалить через API.
var nonRemovableMessageTypes = map[MessageType]struct{}{
	MessageTypeRecipientAdd:         {},
	MessageTypeRecipientRemove:      {},
	MessageTypeCall:                 {},
	MessageTypeChannelNameChange:    {},
	MessageTypeChannelIconChange:    {},
	MessageTypeThreadStarterMessage: {},
}

// IsAllowed сообщает, входит ли тип в список получаемых типов.
func (t MessageType) IsAllowed() bool {
	_, ok := allowedMessageTypes[t]
	return ok
}

// Message представляет одно сообщение Discord.
type Message struct {
	ID              string       `json:"id"`
	Type            MessageType  `json:"type"`
	ChannelID       string       `json:"channel_id"`
	Author          User         `json:"author"`
	Content         string       `json:"content"`
	Timestamp       time.Time    `json:"timestamp"`
	EditedTimestamp *time.Time   `json:"edited_timestamp,omitempty"`
	Attachments     []Attachment `json:"attachments"`
	Embeds          []Embed      `json:"embeds"`
	Reactions       []Reaction   `json:"reactions,omitempty"`
	Mentions        []User       `json:"mentions,omitempty"`
	Pinned          bool         `json:"pinned"`
	Thread          *Channel     `json:"thread,omitempty"`
}

// Key возвращает идентификатор сообщения (курсор пагинации).
func (m Message) Key() string { return m.ID }

// IsRemovable сообщает, может ли сообщение быть удалено целиком.
func (m Message) IsRemovable() bool {
	_, blocked := nonRemovableMessageTypes[m.Type]
	return !blocked
}

// HasReactions сообщает, есть ли у сообщения хотя бы одна реакция.
func (m Message) HasReactions() bool {
	return len(m.Reactions) > 0
}

// Attachment - вложение сообщения.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url,omitempty"`
}

// EmbedTypeRich - тип "богатого" встраивания, текст которого участвует в поиске.
const EmbedTypeRich = "rich"

// Embed - встраиваемый блок сообщения.
type Embed struct {
	Type        string       `json:"type"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
	Video       *EmbedMedia  `json:"video,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedMedia struct {
	URL      string `json:"url"`
	ProxyURL string `json:"proxy_url,omitempty"`
}

// MessagePatch - тело запроса на редактирование сообщения.
// Вложения передаются всегда: отсутствующее вложение будет удалено.
type MessagePatch struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
}

// PatchOf возвращает тело редактирования с текущим содержимым сообщения.
func PatchOf(m Message) MessagePatch {
	attachments := slices.Clone(m.Attachments)
	if attachments == nil {
		attachments = []Attachment{}
	}
	return MessagePatch{Content: m.Content, Attachments: attachments}
}

// DeleteConfig задает, что именно удалять из сообщения.
type DeleteConfig struct {
	Attachments     bool     `json:"attachments"`
	Messages        bool     `json:"messages"`
	Reactions       bool     `json:"reactions"`
	ReactingUserIDs []string `json:"reacting_user_ids,omitempty"`
	Emojis          []string `json:"emojis,omitempty"`
}

// Notification - короткое уведомление для пользователя.
type Notification struct {
	Message string        `json:"message"`
	Timeout time.Duration `json:"timeout"`
}
