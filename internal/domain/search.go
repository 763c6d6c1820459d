package domain

import (
	"slices"
	"time"
)

// Константы постраничного поиска Discord.
const (
	// OffsetIncrement - шаг смещения поисковой выдачи (размер страницы поиска).
	OffsetIncrement = 25
	// MaxOffset - максимальное смещение, которое принимает поиск.
	MaxOffset = 5000
	// StartOffset - начальное смещение.
	StartOffset = 0
)

// HasType - фильтр поиска по наличию содержимого определенного вида.
type HasType string

const (
	HasLink    HasType = "link"
	HasEmbed   HasType = "embed"
	HasPoll    HasType = "poll"
	HasFile    HasType = "file"
	HasVideo   HasType = "video"
	HasImage   HasType = "image"
	HasSound   HasType = "sound"
	HasSticker HasType = "sticker"
	HasForward HasType = "forward"
)

// PinnedState - трехзначный фильтр по закреплению.
type PinnedState string

const (
	PinnedUnset    PinnedState = ""
	PinnedOnly     PinnedState = "pinned"
	PinnedExcluded PinnedState = "unpinned"
)

// SearchCriteria - ограничения поиска. Используется и как тело запроса к поиску.
type SearchCriteria struct {
	SearchBeforeDate     *time.Time  `json:"search_before_date,omitempty" yaml:"search_before_date,omitempty"`
	SearchAfterDate      *time.Time  `json:"search_after_date,omitempty" yaml:"search_after_date,omitempty"`
	SearchMessageContent string      `json:"search_message_content,omitempty" yaml:"search_message_content,omitempty"`
	SelectedHasTypes     []HasType   `json:"selected_has_types,omitempty" yaml:"selected_has_types,omitempty"`
	UserIDs              []string    `json:"user_ids,omitempty" yaml:"user_ids,omitempty"`
	MentionIDs           []string    `json:"mention_ids,omitempty" yaml:"mention_ids,omitempty"`
	ChannelIDs           []string    `json:"channel_ids,omitempty" yaml:"channel_ids,omitempty"`
	IsPinned             PinnedState `json:"is_pinned,omitempty" yaml:"is_pinned,omitempty"`
}

// IsActive сообщает, что задано хотя бы одно ограничение.
func (c SearchCriteria) IsActive() bool {
	return c.SearchBeforeDate != nil ||
		c.SearchAfterDate != nil ||
		c.SearchMessageContent != "" ||
		len(c.SelectedHasTypes) > 0 ||
		len(c.UserIDs) > 0 ||
		len(c.MentionIDs) > 0 ||
		len(c.ChannelIDs) > 0 ||
		c.IsPinned != PinnedUnset
}

// Clone возвращает копию критериев с собственными срезами.
func (c SearchCriteria) Clone() SearchCriteria {
	out := c
	out.SelectedHasTypes = slices.Clone(c.SelectedHasTypes)
	out.UserIDs = slices.Clone(c.UserIDs)
	out.MentionIDs = slices.Clone(c.MentionIDs)
	out.ChannelIDs = slices.Clone(c.ChannelIDs)
	return out
}

// CriteriaOverrides - частичное переопределение критериев. nil означает "оставить как есть".
type CriteriaOverrides struct {
	SearchBeforeDate     *time.Time   `json:"search_before_date,omitempty"`
	SearchAfterDate      *time.Time   `json:"search_after_date,omitempty"`
	SearchMessageContent *string      `json:"search_message_content,omitempty"`
	SelectedHasTypes     []HasType    `json:"selected_has_types,omitempty"`
	UserIDs              []string     `json:"user_ids,omitempty"`
	MentionIDs           []string     `json:"mention_ids,omitempty"`
	ChannelIDs           []string     `json:"channel_ids,omitempty"`
	IsPinned             *PinnedState `json:"is_pinned,omitempty"`
}

// Apply возвращает новые критерии с примененными переопределениями.
func (o *CriteriaOverrides) Apply(c SearchCriteria) SearchCriteria {
	out := c.Clone()
	if o == nil {
		return out
	}
	if o.SearchBeforeDate != nil {
		out.SearchBeforeDate = o.SearchBeforeDate
	}
	if o.SearchAfterDate != nil {
		out.SearchAfterDate = o.SearchAfterDate
	}
	if o.SearchMessageContent != nil {
		out.SearchMessageContent = *o.SearchMessageContent
	}
	if o.SelectedHasTypes != nil {
		out.SelectedHasTypes = slices.Clone(o.SelectedHasTypes)
	}
	if o.UserIDs != nil {
		out.UserIDs = slices.Clone(o.UserIDs)
	}
	if o.MentionIDs != nil {
		out.MentionIDs = slices.Clone(o.MentionIDs)
	}
	if o.ChannelIDs != nil {
		out.ChannelIDs = slices.Clone(o.ChannelIDs)
	}
	if o.IsPinned != nil {
		out.IsPinned = *o.IsPinned
	}
	return out
}

// OverridesFrom превращает полные критерии в переопределение всех полей.
// Используется чисткой, чтобы перенести сдвиг "до даты" между окнами.
func OverridesFrom(c SearchCriteria) *CriteriaOverrides {
	content := c.SearchMessageContent
	pinned := c.IsPinned
	return &CriteriaOverrides{
		SearchBeforeDate:     c.SearchBeforeDate,
		SearchAfterDate:      c.SearchAfterDate,
		SearchMessageContent: &content,
		SelectedHasTypes:     slices.Clone(c.SelectedHasTypes),
		UserIDs:              slices.Clone(c.UserIDs),
		MentionIDs:           slices.Clone(c.MentionIDs),
		ChannelIDs:           slices.Clone(c.ChannelIDs),
		IsPinned:             &pinned,
	}
}

// SearchResult - одна страница ответа поиска.
// Messages вложены: каждое попадание приходит вместе с контекстом.
type SearchResult struct {
	TotalResults int         `json:"total_results"`
	Messages     [][]Message `json:"messages"`
	Threads      []Channel   `json:"threads,omitempty"`
}

// Flatten возвращает плоский список сообщений страницы.
func (r SearchResult) Flatten() []Message {
	var out []Message
	for _, group := range r.Messages {
		out = append(out, group...)
	}
	return out
}
