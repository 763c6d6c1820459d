package domain

import "time"

// User - пользователь Discord в том виде, в каком его возвращает API.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Key возвращает идентификатор пользователя (курсор пагинации реакций).
func (u User) Key() string { return u.ID }

// DisplayName возвращает глобальное имя, если оно задано, иначе username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// GuildMember - участник сервера.
type GuildMember struct {
	User     *User     `json:"user,omitempty"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles"`
	JoinedAt time.Time `json:"joined_at"`
}

// GuildUserData - данные пользователя, относящиеся к конкретному серверу.
type GuildUserData struct {
	Nick      string    `json:"nick,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	JoinedAt  time.Time `json:"joined_at,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserData - запись таблицы пользователей.
// Данные серверов проверяются на устаревание независимо от полей верхнего уровня.
type UserData struct {
	UserName    string                   `json:"user_name,omitempty"`
	DisplayName string                   `json:"display_name,omitempty"`
	Avatar      string                   `json:"avatar,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
	Guilds      map[string]GuildUserData `json:"guilds,omitempty"`
}

// Clone возвращает копию записи с собственной картой серверов.
func (d UserData) Clone() UserData {
	out := d
	if d.Guilds != nil {
		out.Guilds = make(map[string]GuildUserData, len(d.Guilds))
		for k, v := range d.Guilds {
			out.Guilds[k] = v
		}
	}
	return out
}

// Label возвращает имя для статусных сообщений.
func (d UserData) Label(fallback string) string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	if d.UserName != "" {
		return d.UserName
	}
	return fallback
}

// UserMap - таблица пользователей по ID.
type UserMap map[string]UserData

// Clone возвращает независимую копию таблицы.
func (m UserMap) Clone() UserMap {
	out := make(UserMap, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// IsStale сообщает, что данные со временем ts пора обновить.
func IsStale(ts, now time.Time, refreshRate time.Duration) bool {
	if ts.IsZero() {
		return true
	}
	return now.Sub(ts) > refreshRate
}
