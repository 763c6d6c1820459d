package domain

import (
	"net/url"
	"slices"
)

// ReactionType - тип реакции: обычная или "супер" (burst).
type ReactionType int

const (
	ReactionTypeNormal ReactionType = 0
	ReactionTypeBurst  ReactionType = 1
)

// Emoji - эмодзи реакции. ID пуст для unicode-эмодзи.
type Emoji struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

// Encode возвращает ключ эмодзи в формате, пригодном для URL API:
// "name:id" для кастомных эмодзи, экранированное имя для unicode.
func (e Emoji) Encode() string {
	if e.ID != "" {
		return e.Name + ":" + e.ID
	}
	return url.PathEscape(e.Name)
}

// ReactionCountDetails - разбивка счетчика реакций по типам.
type ReactionCountDetails struct {
	Burst  int `json:"burst"`
	Normal int `json:"normal"`
}

// Reaction - реакция на сообщение.
type Reaction struct {
	Count        int                  `json:"count"`
	CountDetails ReactionCountDetails `json:"count_details"`
	Me           bool                 `json:"me"`
	MeBurst      bool                 `json:"me_burst"`
	Emoji        Emoji                `json:"emoji"`
}

// ReactingUser - пользователь, поставивший реакцию.
type ReactingUser struct {
	ID    string `json:"id"`
	Burst bool   `json:"burst"`
}

// ReactionMap: ID сообщения -> ключ эмодзи -> пользователи.
// Отсутствие записи означает "еще не получено", а не "реакций нет".
type ReactionMap map[string]map[string][]ReactingUser

// Clone возвращает независимую копию карты.
func (m ReactionMap) Clone() ReactionMap {
	out := make(ReactionMap, len(m))
	for msgID, emojis := range m {
		inner := make(map[string][]ReactingUser, len(emojis))
		for key, users := range emojis {
			inner[key] = slices.Clone(users)
		}
		out[msgID] = inner
	}
	return out
}

// Find возвращает запись пользователя для сообщения и эмодзи.
func (m ReactionMap) Find(messageID, emoji, userID string) (ReactingUser, bool) {
	for _, u := range m[messageID][emoji] {
		if u.ID == userID {
			return u, true
		}
	}
	return ReactingUser{}, false
}
