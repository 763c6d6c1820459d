package domain

import "encoding/json"

// EntityKind - вид сущности, которую сейчас обрабатывает длительная операция.
type EntityKind string

const (
	EntityNone    EntityKind = ""
	EntityMessage EntityKind = "message"
	EntityChannel EntityKind = "channel"
	EntityGuild   EntityKind = "guild"
	EntityUser    EntityKind = "user"
	EntityWindow  EntityKind = "window"
)

// Entity - текущая сущность задачи. Реализуется Message, Channel, Guild, User и PurgeWindow.
type Entity interface {
	EntityKind() EntityKind
}

func (Message) EntityKind() EntityKind { return EntityMessage }
func (Channel) EntityKind() EntityKind { return EntityChannel }
func (Guild) EntityKind() EntityKind   { return EntityGuild }
func (User) EntityKind() EntityKind    { return EntityUser }

// PurgeWindow - положение окна поиска при чистке.
type PurgeWindow struct {
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func (PurgeWindow) EntityKind() EntityKind { return EntityWindow }

// Progress - состояние текущей операции: сущность и метаданные прогресса.
// Пустое значение означает "операция не выполняется".
type Progress struct {
	Entity Entity `json:"-"`
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Status string `json:"status,omitempty"`
	Data1  string `json:"data1,omitempty"`
	Data2  string `json:"data2,omitempty"`
}

// IsEmpty сообщает, что прогресс сброшен.
func (p Progress) IsEmpty() bool {
	return p.Entity == nil && p.Index == 0 && p.Total == 0 && p.Status == "" && p.Data1 == "" && p.Data2 == ""
}

// MarshalJSON кодирует сущность вместе с ее видом.
func (p Progress) MarshalJSON() ([]byte, error) {
	type plain Progress
	out := struct {
		plain
		Kind   EntityKind `json:"kind,omitempty"`
		Entity Entity     `json:"entity,omitempty"`
	}{plain: plain(p)}
	if p.Entity != nil {
		out.Kind = p.Entity.EntityKind()
		out.Entity = p.Entity
	}
	return json.Marshal(out)
}
