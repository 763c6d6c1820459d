package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"discord-chat-manager/internal/domain"
)

// searchResponse - ответ поиска. Пока индекс строится, Discord отвечает 202
// или выставляет retry.
type searchResponse struct {
	domain.SearchResult
	Retry      bool    `json:"retry"`
	RetryAfter float64 `json:"retry_after"`
}

// SearchMessages ищет по серверу, если задан guildID, иначе по каналу ЛС.
func (c *Client) SearchMessages(ctx context.Context, guildID, channelID string, offset int, criteria domain.SearchCriteria) (*domain.SearchResult, error) {
	r := request{
		op:     "search_messages",
		method: http.MethodGet,
		path:   searchPath(guildID, channelID),
		query:  searchQuery(guildID, channelID, offset, criteria),
	}

	for attempt := 0; attempt < c.searchRetries; attempt++ {
		var res searchResponse
		status, err := c.do(ctx, r, &res)
		if err != nil {
			return nil, err
		}
		if status != http.StatusAccepted && !res.Retry {
			return &res.SearchResult, nil
		}

		wait := c.searchDelay
		if res.RetryAfter > 0 {
			wait = time.Duration(res.RetryAfter * float64(time.Second))
		}
		c.log.Info("search index not ready, retrying", "wait", wait, "attempt", attempt+1)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("search after %d attempts: %w", c.searchRetries, ErrSearchNotReady)
}

func searchPath(guildID, channelID string) string {
	if guildID != "" {
		return "/guilds/" + guildID + "/messages/search"
	}
	return "/channels/" + channelID + "/messages/search"
}

func searchQuery(guildID, channelID string, offset int, criteria domain.SearchCriteria) url.Values {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if criteria.SearchMessageContent != "" {
		q.Set("content", criteria.SearchMessageContent)
	}
	for _, id := range criteria.UserIDs {
		q.Add("author_id", id)
	}
	for _, id := range criteria.MentionIDs {
		q.Add("mentions", id)
	}
	for _, h := range criteria.SelectedHasTypes {
		q.Add("has", string(h))
	}
	if criteria.SearchAfterDate != nil {
		q.Set("min_id", SnowflakeFromTime(*criteria.SearchAfterDate))
	}
	if criteria.SearchBeforeDate != nil {
		q.Set("max_id", SnowflakeFromTime(*criteria.SearchBeforeDate))
	}
	switch criteria.IsPinned {
	case domain.PinnedOnly:
		q.Set("pinned", "true")
	case domain.PinnedExcluded:
		q.Set("pinned", "false")
	}

	if guildID != "" {
		channels := slices.Clone(criteria.ChannelIDs)
		if channelID != "" && !slices.Contains(channels, channelID) {
			channels = append(channels, channelID)
		}
		for _, id := range channels {
			q.Add("channel_id", id)
		}
		q.Set("include_nsfw", "true")
	}
	return q
}
