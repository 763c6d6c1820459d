package discord

import (
	"strconv"
	"time"
)

// discordEpoch - начало отсчета идентификаторов Discord (2015-01-01) в миллисекундах.
const discordEpoch = 1420070400000

// SnowflakeFromTime возвращает минимальный идентификатор, созданный в момент t.
func SnowflakeFromTime(t time.Time) string {
	ms := t.UnixMilli() - discordEpoch
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatUint(uint64(ms)<<22, 10)
}

// TimeFromSnowflake возвращает время создания идентификатора.
func TimeFromSnowflake(id string) (time.Time, bool) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(v>>22) + discordEpoch).UTC(), true
}
