package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/server/usecase"
)

var knownHasTypes = []domain.HasType{
	domain.HasLink, domain.HasEmbed, domain.HasPoll, domain.HasFile, domain.HasVideo,
	domain.HasImage, domain.HasSound, domain.HasSticker, domain.HasForward,
}

// criteriaFlags - флаги критериев поиска.
type criteriaFlags struct {
	content  string
	authors  []string
	mentions []string
	channels []string
	has      []string
	before   string
	after    string
	pinned   string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.content, "content", "", "search message content")
	fs.StringSliceVar(&f.authors, "author", nil, "author user IDs")
	fs.StringSliceVar(&f.mentions, "mention", nil, "mentioned user IDs")
	fs.StringSliceVar(&f.channels, "in", nil, "restrict guild search to channel IDs")
	fs.StringSliceVar(&f.has, "has", nil, "content kinds: link, embed, poll, file, video, image, sound, sticker, forward")
	fs.StringVar(&f.before, "before", "", "messages before date (2006-01-02 or RFC3339)")
	fs.StringVar(&f.after, "after", "", "messages after date (2006-01-02 or RFC3339)")
	fs.StringVar(&f.pinned, "pinned", "", "pinned or unpinned")
}

func (f *criteriaFlags) criteria() (domain.SearchCriteria, error) {
	var errs []error
	c := domain.SearchCriteria{
		SearchMessageContent: f.content,
		UserIDs:              f.authors,
		MentionIDs:           f.mentions,
		ChannelIDs:           f.channels,
	}

	for _, h := range f.has {
		ht := domain.HasType(h)
		if !slices.Contains(knownHasTypes, ht) {
			errs = append(errs, fmt.Errorf("неизвестный тип --has: %q", h))
			continue
		}
		c.SelectedHasTypes = append(c.SelectedHasTypes, ht)
	}

	var err error
	if c.SearchBeforeDate, err = parseDate(f.before); err != nil {
		errs = append(errs, fmt.Errorf("--before: %w", err))
	}
	if c.SearchAfterDate, err = parseDate(f.after); err != nil {
		errs = append(errs, fmt.Errorf("--after: %w", err))
	}

	switch p := domain.PinnedState(f.pinned); p {
	case domain.PinnedUnset, domain.PinnedOnly, domain.PinnedExcluded:
		c.IsPinned = p
	default:
		errs = append(errs, fmt.Errorf("--pinned должен быть pinned или unpinned, получено %q", f.pinned))
	}

	return c, errors.Join(errs...)
}

// parseDate разбирает дату в формате 2006-01-02 или RFC3339. Пустая строка означает nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("некорректная дата %q", s)
}

// targetFlags - цель задачи, критерии и локальные фильтры.
type targetFlags struct {
	guildID     string
	channelID   string
	criteria    criteriaFlags
	textFilter  []string
	attachments []string
	inverse     bool
	selected    []string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.guildID, "guild", "", "guild ID")
	fs.StringVar(&f.channelID, "channel", "", "channel or DM ID")
	fs.StringSliceVar(&f.textFilter, "filter", nil, "keep messages whose text contains any value")
	fs.StringSliceVar(&f.attachments, "filter-attachment", nil, "keep messages with attachment names containing any value")
	fs.BoolVar(&f.inverse, "inverse", false, "invert filters")
	fs.StringSliceVar(&f.selected, "select", nil, "only these message IDs")
	f.criteria.register(cmd)
}

func (f *targetFlags) request() (usecase.SearchRequest, error) {
	criteria, err := f.criteria.criteria()
	if f.guildID == "" && f.channelID == "" {
		err = errors.Join(err, errors.New("нужно указать --guild или --channel"))
	}
	if err != nil {
		return usecase.SearchRequest{}, err
	}

	var filters []domain.Filter
	if len(f.textFilter) > 0 {
		filters = append(filters, domain.TextFilter(domain.FilterNameContent, f.textFilter...))
	}
	if len(f.attachments) > 0 {
		filters = append(filters, domain.TextFilter(domain.FilterNameAttachmentName, f.attachments...))
	}
	if f.inverse {
		filters = append(filters, domain.InverseFilter(true))
	}

	return usecase.SearchRequest{
		GuildID:     f.guildID,
		ChannelID:   f.channelID,
		Criteria:    criteria,
		Filters:     filters,
		SelectedIDs: f.selected,
	}, nil
}
