package discord

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

var (
	_ ports.DiscordAPI      = (*Client)(nil)
	_ ports.AssetDownloader = (*Client)(nil)
)

func (c *Client) GetCurrentUser(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if _, err := c.do(ctx, request{op: "get_current_user", method: http.MethodGet, path: "/users/@me"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if _, err := c.do(ctx, request{op: "get_user", method: http.MethodGet, path: "/users/" + userID}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetGuild(ctx context.Context, guildID string) (*domain.Guild, error) {
	var g domain.Guild
	if _, err := c.do(ctx, request{op: "get_guild", method: http.MethodGet, path: "/guilds/" + guildID}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (*domain.GuildMember, error) {
	var m domain.GuildMember
	r := request{op: "get_guild_member", method: http.MethodGet, path: "/guilds/" + guildID + "/members/" + userID}
	if _, err := c.do(ctx, r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	var ch domain.Channel
	if _, err := c.do(ctx, request{op: "get_channel", method: http.MethodGet, path: "/channels/" + channelID}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) EditChannel(ctx context.Context, channelID string, patch domain.ChannelPatch) (*domain.Channel, error) {
	var ch domain.Channel
	r := request{op: "edit_channel", method: http.MethodPatch, path: "/channels/" + channelID, body: patch}
	if _, err := c.do(ctx, r, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) ListMessages(ctx context.Context, channelID, before string, limit int) ([]domain.Message, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if before != "" {
		q.Set("before", before)
	}
	var msgs []domain.Message
	r := request{op: "list_messages", method: http.MethodGet, path: "/channels/" + channelID + "/messages", query: q}
	if _, err := c.do(ctx, r, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) MessagesAround(ctx context.Context, channelID, messageID string, limit int) ([]domain.Message, error) {
	q := url.Values{"around": {messageID}, "limit": {strconv.Itoa(limit)}}
	var msgs []domain.Message
	r := request{op: "messages_around", method: http.MethodGet, path: "/channels/" + channelID + "/messages", query: q}
	if _, err := c.do(ctx, r, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, patch domain.MessagePatch) (*domain.Message, error) {
	var m domain.Message
	r := request{op: "edit_message", method: http.MethodPatch, path: "/channels/" + channelID + "/messages/" + messageID, body: patch}
	if _, err := c.do(ctx, r, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	r := request{op: "delete_message", method: http.MethodDelete, path: "/channels/" + channelID + "/messages/" + messageID}
	_, err := c.do(ctx, r, nil)
	return err
}

func (c *Client) ListArchivedThreads(ctx context.Context, channelID string, private bool, before *time.Time) (*domain.ThreadList, error) {
	kind := "public"
	if private {
		kind = "private"
	}
	q := url.Values{"limit": {"100"}}
	if before != nil {
		q.Set("before", before.UTC().Format(time.RFC3339))
	}
	var list domain.ThreadList
	r := request{op: "list_archived_threads", method: http.MethodGet, path: "/channels/" + channelID + "/threads/archived/" + kind, query: q}
	if _, err := c.do(ctx, r, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetReactions ожидает emoji уже закодированным для пути запроса.
func (c *Client) GetReactions(ctx context.Context, channelID, messageID, emoji string, reactionType domain.ReactionType, after string, limit int) ([]domain.User, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}, "type": {strconv.Itoa(int(reactionType))}}
	if after != "" {
		q.Set("after", after)
	}
	var users []domain.User
	r := request{
		op:     "get_reactions",
		method: http.MethodGet,
		path:   "/channels/" + channelID + "/messages/" + messageID + "/reactions/" + emoji,
		query:  q,
	}
	if _, err := c.do(ctx, r, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) DeleteReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	if userID == "" {
		userID = "@me"
	}
	r := request{
		op:     "delete_reaction",
		method: http.MethodDelete,
		path:   "/channels/" + channelID + "/messages/" + messageID + "/reactions/" + emoji + "/" + userID,
	}
	_, err := c.do(ctx, r, nil)
	return err
}
