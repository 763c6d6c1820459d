package domain

import "time"

// ChannelType - тип канала Discord.
type ChannelType int

const (
	ChannelTypeGuildText          ChannelType = 0
	ChannelTypeDM                 ChannelType = 1
	ChannelTypeGuildVoice         ChannelType = 2
	ChannelTypeGroupDM            ChannelType = 3
	ChannelTypeGuildCategory      ChannelType = 4
	ChannelTypeGuildNews          ChannelType = 5
	ChannelTypeGuildNewsThread    ChannelType = 10
	ChannelTypeGuildPublicThread  ChannelType = 11
	ChannelTypeGuildPrivateThread ChannelType = 12
	ChannelTypeGuildStageVoice    ChannelType = 13
	ChannelTypeGuildForum         ChannelType = 15
	ChannelTypeGuildMedia         ChannelType = 16
)

// Channel - контейнер сообщений: канал сервера, личные сообщения или тред.
type Channel struct {
	ID             string          `json:"id"`
	Type           ChannelType     `json:"type"`
	GuildID        string          `json:"guild_id,omitempty"`
	Name           string          `json:"name,omitempty"`
	ParentID       string          `json:"parent_id,omitempty"`
	OwnerID        string          `json:"owner_id,omitempty"`
	Recipients     []User          `json:"recipients,omitempty"`
	ThreadMetadata *ThreadMetadata `json:"thread_metadata,omitempty"`
}

// ThreadMetadata - состояние треда.
type ThreadMetadata struct {
	Archived         bool       `json:"archived"`
	Locked           bool       `json:"locked"`
	ArchiveTimestamp *time.Time `json:"archive_timestamp,omitempty"`
}

// IsThread сообщает, является ли канал тредом.
func (c Channel) IsThread() bool {
	switch c.Type {
	case ChannelTypeGuildNewsThread, ChannelTypeGuildPublicThread, ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

// IsDM сообщает, является ли канал личной перепиской.
func (c Channel) IsDM() bool {
	return c.Type == ChannelTypeDM || c.Type == ChannelTypeGroupDM
}

// IsForumLike сообщает, что сообщения канала существуют только внутри тредов.
func (c Channel) IsForumLike() bool {
	return c.Type == ChannelTypeGuildForum || c.Type == ChannelTypeGuildMedia
}

// IsRestricted сообщает, что тред архивирован или заблокирован.
func (c Channel) IsRestricted() bool {
	return c.ThreadMetadata != nil && (c.ThreadMetadata.Archived || c.ThreadMetadata.Locked)
}

// DisplayName возвращает имя канала или список собеседников для личных сообщений.
func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Recipients) > 0 {
		name := c.Recipients[0].DisplayName()
		for _, r := range c.Recipients[1:] {
			name += ", " + r.DisplayName()
		}
		return name
	}
	return c.ID
}

// ChannelPatch - тело запроса на изменение канала (снятие ограничений треда).
type ChannelPatch struct {
	Archived *bool `json:"archived,omitempty"`
	Locked   *bool `json:"locked,omitempty"`
}

// ThreadList - ответ списка архивных тредов.
type ThreadList struct {
	Threads []Channel `json:"threads"`
	HasMore bool      `json:"has_more"`
}

// Guild - сервер Discord.
type Guild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Roles []Role `json:"roles,omitempty"`
}

// Role - роль сервера.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Icon     string `json:"icon,omitempty"`
}

// UniqueChannels объединяет списки каналов, удаляя дубликаты по ID.
// Порядок первого появления сохраняется.
func UniqueChannels(lists ...[]Channel) []Channel {
	seen := make(map[string]struct{})
	var out []Channel
	for _, list := range lists {
		for _, c := range list {
			if c.ID == "" {
				continue
			}
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
