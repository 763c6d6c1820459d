package domain

import "time"

// FilterType - вид фильтра.
type FilterType string

const (
	FilterTypeText   FilterType = "text"
	FilterTypeDate   FilterType = "date"
	FilterTypeArray  FilterType = "array"
	FilterTypeToggle FilterType = "toggle"
	FilterTypeThread FilterType = "thread"
)

// FilterName - имя фильтра. Для текстовых фильтров допустимо также имя поля сообщения.
type FilterName string

const (
	FilterNameContent        FilterName = "content"
	FilterNameAttachmentName FilterName = "attachment_name"
	FilterNameStartTime      FilterName = "start_time"
	FilterNameEndTime        FilterName = "end_time"
	FilterNameInverse        FilterName = "inverse"
	FilterNameMessageType    FilterName = "message_type"
	FilterNameUserName       FilterName = "userName"
	FilterNameID             FilterName = "id"
	FilterNameChannelID      FilterName = "channel_id"
	FilterNameType           FilterName = "type"
)

// Категории фильтра по типу сообщения.
const (
	MessageCategoryPinned        = "pinned"
	MessageCategoryReactions     = "reactions"
	MessageCategoryThread        = "thread"
	MessageCategoryThreadStarter = "thread_starter"
)

// Filter - вариант фильтра. Значимые поля зависят от Type:
// text и array используют Values, date - Date, toggle - Enabled,
// thread - ThreadID.
type Filter struct {
	Type     FilterType `json:"type"`
	Name     FilterName `json:"name,omitempty"`
	Values   []string   `json:"values,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Enabled  bool       `json:"enabled,omitempty"`
	ThreadID string     `json:"thread_id,omitempty"`
}

func TextFilter(name FilterName, values ...string) Filter {
	return Filter{Type: FilterTypeText, Name: name, Values: values}
}

func DateFilter(name FilterName, date *time.Time) Filter {
	return Filter{Type: FilterTypeDate, Name: name, Date: date}
}

func MessageTypeFilter(values ...string) Filter {
	return Filter{Type: FilterTypeArray, Name: FilterNameMessageType, Values: values}
}

func InverseFilter(enabled bool) Filter {
	return Filter{Type: FilterTypeToggle, Name: FilterNameInverse, Enabled: enabled}
}

func ThreadFilter(threadID string) Filter {
	return Filter{Type: FilterTypeThread, ThreadID: threadID}
}

// IsInverse сообщает, что фильтр включает инверсию.
func (f Filter) IsInverse() bool {
	return f.Type == FilterTypeToggle && f.Name == FilterNameInverse && f.Enabled
}

// FilterResult - результат применения фильтров.
type FilterResult struct {
	Messages    []Message `json:"messages"`
	SelectedIDs []string  `json:"selected_ids"`
}
