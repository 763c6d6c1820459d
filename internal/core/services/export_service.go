package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

const cdnBaseURL = "https://cdn.discordapp.com"

// defaultMessagesPerPage - размер страницы экспорта, если он не задан.
const defaultMessagesPerPage = 1000

var (
	customEmojiRegexp = regexp.MustCompile(`<(a?):(\w+):(\d+)>`)
	unsafeNameRegexp  = regexp.MustCompile(`[^\p{L}\p{N}_\-.]+`)
)

// MediaSettings - виды медиа, которые загружаются в архив.
type MediaSettings struct {
	Images         bool `json:"images" yaml:"images"`
	Videos         bool `json:"videos" yaml:"videos"`
	Audio          bool `json:"audio" yaml:"audio"`
	Files          bool `json:"files" yaml:"files"`
	EmbeddedImages bool `json:"embedded_images" yaml:"embedded_images"`
	EmbeddedVideos bool `json:"embedded_videos" yaml:"embedded_videos"`
}

// ExportConfig хранит конфигурацию для ExportService.
type ExportConfig struct {
	MessagesPerPage       int
	StartDelay            time.Duration
	SeparateThreadExports bool
	Media                 MediaSettings
	MaxMediaSize          int64
	ReactionsEnabled      bool
	CacheTTL              time.Duration
}

// ExportRequest - цель и параметры одного экспорта.
type ExportRequest struct {
	GuildID   string
	ChannelID string
	Format    domain.ExportFormat
	Filters   []domain.Filter
}

// ExportState - известные вызывающей стороне каналы, сервер и таблицы.
type ExportState struct {
	Retrieval RetrievalState
	Guild     *domain.Guild
}

// ExportReport - итоги экспорта.
type ExportReport struct {
	Location string `json:"location"`
	Messages int    `json:"messages"`
	Pages    int    `json:"pages"`
	Assets   int    `json:"assets"`
	Bytes    int64  `json:"bytes"`
	Stopped  bool   `json:"stopped"`
}

// ErrUnsupportedFormat возвращается, если для формата нет форматтера.
var ErrUnsupportedFormat = errors.New("формат экспорта не поддерживается")

// ExportService собирает сообщения, загружает связанные ресурсы и записывает
// страницы выбранного формата в архив.
type ExportService struct {
	runtime
	retrieval  *RetrievalService
	downloader ports.AssetDownloader
	cache      ports.AssetCache
	archives   ports.ArchiveFactory
	formatters map[domain.ExportFormat]ports.Formatter
	config     ExportConfig
}

// NewExportService создает новый ExportService. cache может быть nil.
func NewExportService(
	retrieval *RetrievalService,
	downloader ports.AssetDownloader,
	cache ports.AssetCache,
	archives ports.ArchiveFactory,
	formatters map[domain.ExportFormat]ports.Formatter,
	cfg ExportConfig,
	opts ...Option,
) *ExportService {
	if cfg.MessagesPerPage <= 0 {
		cfg.MessagesPerPage = defaultMessagesPerPage
	}
	return &ExportService{
		runtime:    newRuntime(opts),
		retrieval:  retrieval,
		downloader: downloader,
		cache:      cache,
		archives:   archives,
		formatters: formatters,
		config:     cfg,
	}
}

// exportRun - изменяемое состояние одного экспорта.
type exportRun struct {
	archive ports.ArchiveWriter
	maps    domain.ExportMaps
	users   domain.UserMap
	react   domain.ReactionMap
	threads []domain.Channel
	report  ExportReport
}

// Export выполняет экспорт цели. Ошибка возвращается только если архив не удалось
// создать или завершить; недоступные ресурсы пропускаются.
func (s *ExportService) Export(ctx context.Context, req ExportRequest, state ExportState) (*ExportReport, error) {
	format := req.Format
	if format == "" {
		format = domain.ExportFormatJSON
	}
	formatter, ok := s.formatters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	res, err := s.retrieval.Retrieve(ctx, RetrieveRequest{GuildID: req.GuildID, ChannelID: req.ChannelID}, state.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сообщений для экспорта: %w", err)
	}

	messages := res.Messages
	if len(req.Filters) > 0 {
		messages = FilterMessages(messages, req.Filters, res.Threads, nil).Messages
	}
	messages = slices.Clone(messages)
	slices.SortStableFunc(messages, func(a, b domain.Message) int { return a.Timestamp.Compare(b.Timestamp) })

	channel, _ := FindChannel(state.Retrieval.Channels, slices.Concat(state.Retrieval.DMs, state.Retrieval.Threads), req.ChannelID)
	if channel.ID == "" {
		channel.ID = req.ChannelID
	}
	name := exportName(channel, state.Guild)

	archive, err := s.archives.NewArchive(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания архива: %w", err)
	}

	run := &exportRun{
		archive: archive,
		maps:    domain.NewExportMaps(),
		users:   res.Users,
		react:   res.Reactions,
		threads: domain.UniqueChannels(state.Retrieval.Threads, res.Threads),
		report:  ExportReport{Messages: len(messages)},
	}

	s.log.InfoContext(ctx, "Starting export",
		"name", name,
		"format", format,
		"messages", len(messages),
	)

	s.reporter.SetModifying(false)
	defer s.reporter.SetProgress(domain.Progress{})

	if !s.wait(ctx, s.config.StartDelay) {
		run.report.Stopped = true
	}

	if !run.report.Stopped && state.Guild != nil {
		s.downloadRoles(ctx, run, *state.Guild)
	}
	if !run.report.Stopped {
		run.report.Stopped = !s.processMessages(ctx, run, messages)
	}
	if !run.report.Stopped {
		run.report.Stopped = !s.writePages(ctx, run, formatter, name, channel, state.Guild, messages)
	}

	location, err := archive.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка завершения архива: %w", err)
	}
	run.report.Location = location
	s.status("")

	s.log.InfoContext(ctx, "Export finished",
		"location", location,
		"pages", run.report.Pages,
		"assets", run.report.Assets,
		"size", humanize.Bytes(uint64(run.report.Bytes)),
		"stopped", run.report.Stopped,
	)
	return &run.report, nil
}

// wait выдерживает паузу перед первым элементом. false означает отмену.
func (s *ExportService) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !s.stopped(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !s.stopped(ctx)
	}
}

// processMessages загружает медиа, эмодзи и аватары каждого сообщения.
func (s *ExportService) processMessages(ctx context.Context, run *exportRun, messages []domain.Message) bool {
	for i, msg := range messages {
		if s.stopped(ctx) {
			return false
		}
		s.downloadMedia(ctx, run, msg, i)
		s.downloadEmojis(ctx, run, msg)
		s.downloadAvatars(ctx, run, msg)
		s.status(fmt.Sprintf("Processed %d of %d messages (%d%%)", i+1, len(messages), percent(i+1, len(messages))))
	}
	return true
}

// mediaURLs возвращает адреса медиа сообщения, разрешенные настройками.
func (s *ExportService) mediaURLs(msg domain.Message) []mediaRef {
	m := s.config.Media
	var refs []mediaRef
	for _, e := range msg.Embeds {
		if m.EmbeddedImages {
			for _, media := range []*domain.EmbedMedia{e.Image, e.Thumbnail} {
				if media != nil && media.URL != "" {
					refs = append(refs, mediaRef{url: media.URL, name: fileNameFromURL(media.URL)})
				}
			}
		}
		if m.EmbeddedVideos && e.Video != nil && e.Video.URL != "" {
			refs = append(refs, mediaRef{url: e.Video.URL, name: fileNameFromURL(e.Video.URL)})
		}
	}
	for _, a := range msg.Attachments {
		var allowed bool
		switch {
		case strings.HasPrefix(a.ContentType, "image/"):
			allowed = m.Images
		case strings.HasPrefix(a.ContentType, "video/"):
			allowed = m.Videos
		case strings.HasPrefix(a.ContentType, "audio/"):
			allowed = m.Audio
		default:
			allowed = m.Files
		}
		if allowed && a.URL != "" {
			name := a.Filename
			if name == "" {
				name = fileNameFromURL(a.URL)
			}
			refs = append(refs, mediaRef{url: a.URL, name: name})
		}
	}
	return refs
}

type mediaRef struct {
	url  string
	name string
}

func (s *ExportService) downloadMedia(ctx context.Context, run *exportRun, msg domain.Message, index int) {
	dir := "media"
	if s.config.SeparateThreadExports {
		if thread, ok := threadOf(msg, run.threads); ok {
			dir = safeName(thread.DisplayName()) + "_media"
		}
	}

	for j, ref := range s.mediaURLs(msg) {
		if s.stopped(ctx) {
			return
		}
		if _, ok := run.maps.Media[ref.url]; ok {
			continue
		}
		filePath := fmt.Sprintf("%s/%d_%d_%s", dir, index+1, j+1, safeName(ref.name))
		if s.store(ctx, run, ref.url, filePath, s.config.MaxMediaSize) {
			run.maps.Media[ref.url] = filePath
		}
	}
}

// downloadEmojis загружает пользовательские эмодзи из текста и реакций.
func (s *ExportService) downloadEmojis(ctx context.Context, run *exportRun, msg domain.Message) {
	var emojis []domain.Emoji
	for _, m := range customEmojiRegexp.FindAllStringSubmatch(msg.Content, -1) {
		emojis = append(emojis, domain.Emoji{ID: m[3], Name: m[2], Animated: m[1] == "a"})
	}
	if s.config.ReactionsEnabled {
		for _, r := range msg.Reactions {
			if r.Emoji.ID != "" && r.Emoji.Name != "" {
				emojis = append(emojis, r.Emoji)
			}
		}
	}

	for _, e := range emojis {
		if s.stopped(ctx) {
			return
		}
		if _, ok := run.maps.Emojis[e.ID]; ok {
			continue
		}
		ext := "png"
		if e.Animated {
			ext = "gif"
		}
		remote := fmt.Sprintf("%s/emojis/%s.%s", cdnBaseURL, e.ID, ext)
		filePath := fmt.Sprintf("emojis/%s_%s.%s", safeName(e.Name), e.ID, ext)
		if s.store(ctx, run, remote, filePath, 0) {
			run.maps.Emojis[e.ID] = filePath
		}
	}
}

// downloadAvatars загружает аватар автора и, если включены реакции, аватары отреагировавших.
func (s *ExportService) downloadAvatars(ctx context.Context, run *exportRun, msg domain.Message) {
	type lookup struct{ id, avatar string }
	lookups := []lookup{{id: msg.Author.ID, avatar: msg.Author.Avatar}}

	if s.config.ReactionsEnabled {
		for _, r := range msg.Reactions {
			for _, u := range run.react[msg.ID][r.Emoji.Encode()] {
				if !slices.ContainsFunc(lookups, func(l lookup) bool { return l.id == u.ID }) {
					lookups = append(lookups, lookup{id: u.ID, avatar: run.users[u.ID].Avatar})
				}
			}
		}
	}

	for _, l := range lookups {
		if s.stopped(ctx) {
			return
		}
		if l.id == "" || l.avatar == "" {
			continue
		}
		key := l.id + "/" + l.avatar
		if _, ok := run.maps.Avatars[key]; ok {
			continue
		}
		remote := fmt.Sprintf("%s/avatars/%s.png", cdnBaseURL, key)
		filePath := fmt.Sprintf("avatars/%s.png", key)
		if s.store(ctx, run, remote, filePath, 0) {
			run.maps.Avatars[key] = filePath
		}
	}
}

// downloadRoles загружает иконки ролей сервера.
func (s *ExportService) downloadRoles(ctx context.Context, run *exportRun, guild domain.Guild) {
	for _, role := range guild.Roles {
		if s.stopped(ctx) {
			return
		}
		if role.Icon == "" {
			continue
		}
		remote := fmt.Sprintf("%s/role-icons/%s/%s.png", cdnBaseURL, role.ID, role.Icon)
		if _, ok := run.maps.Roles[remote]; ok {
			continue
		}
		filePath := fmt.Sprintf("roles/%s_%s.png", safeName(role.Name), role.ID)
		if s.store(ctx, run, remote, filePath, 0) {
			run.maps.Roles[remote] = filePath
		}
	}
}

// store загружает ресурс (или берет его из кэша) и кладет в архив.
func (s *ExportService) store(ctx context.Context, run *exportRun, remote, filePath string, maxSize int64) bool {
	data, ok := s.fetch(ctx, remote, maxSize)
	if !ok {
		return false
	}

	s.status("Archiving - " + filePath)
	if err := run.archive.WriteFile(ctx, filePath, data); err != nil {
		s.log.WarnContext(ctx, "Failed to archive asset", "path", filePath, "error", err)
		return false
	}
	run.report.Assets++
	run.report.Bytes += int64(len(data))
	return true
}

func (s *ExportService) fetch(ctx context.Context, remote string, maxSize int64) ([]byte, bool) {
	if s.cache != nil {
		if data, ok := s.cache.Get(remote); ok {
			return data, true
		}
	}

	s.status("Downloading - " + remote)
	data, err := executeOperation(ctx, s.runtime, []any{"operation", "Download", "url", remote},
		func(ctx context.Context) ([]byte, error) { return s.downloader.Download(ctx, remote, maxSize) })
	if err != nil {
		return nil, false
	}
	if s.cache != nil {
		s.cache.Put(remote, data, s.config.CacheTTL)
	}
	return data, true
}

// exportGroup - набор сообщений, записываемый в отдельный каталог.
type exportGroup struct {
	dir      string
	title    string
	channel  domain.Channel
	messages []domain.Message
}

// groups делит сообщения на основной экспорт и, при необходимости, экспорты тредов.
func (s *ExportService) groups(run *exportRun, name string, channel domain.Channel, messages []domain.Message) []exportGroup {
	main := exportGroup{dir: name, title: name, channel: channel}
	if !s.config.SeparateThreadExports {
		main.messages = messages
		return []exportGroup{main}
	}

	var threadGroups []exportGroup
	index := make(map[string]int)
	for _, msg := range messages {
		thread, ok := threadOf(msg, run.threads)
		if !ok || thread.ID != msg.ChannelID {
			main.messages = append(main.messages, msg)
			continue
		}
		i, seen := index[thread.ID]
		if !seen {
			i = len(threadGroups)
			index[thread.ID] = i
			threadName := safeName(thread.DisplayName())
			threadGroups = append(threadGroups, exportGroup{
				dir:     name + "/threads/" + threadName,
				title:   thread.DisplayName(),
				channel: thread,
			})
		}
		threadGroups[i].messages = append(threadGroups[i].messages, msg)
	}
	return append([]exportGroup{main}, threadGroups...)
}

// writePages записывает страницы всех групп через форматтер.
func (s *ExportService) writePages(ctx context.Context, run *exportRun, f ports.Formatter, name string, channel domain.Channel, guild *domain.Guild, messages []domain.Message) bool {
	for _, g := range s.groups(run, name, channel, messages) {
		pages := chunk(g.messages, s.config.MessagesPerPage)
		for i, page := range pages {
			if s.stopped(ctx) {
				return false
			}
			filePath := fmt.Sprintf("%s/%s_page_%d.%s", g.dir, safeName(g.title), i+1, f.Extension())
			s.reporter.SetProgress(domain.Progress{Entity: g.channel, Index: i + 1, Total: len(pages)})
			s.status("Archiving - " + filePath)

			var buf bytes.Buffer
			err := f.Write(&buf, domain.ExportPage{
				Title:    g.title,
				Channel:  g.channel,
				Guild:    guild,
				Page:     i + 1,
				Messages: page,
				Users:    run.users,
				Reaction: run.react,
				Maps:     run.maps,
			})
			if err != nil {
				s.log.WarnContext(ctx, "Failed to format export page", "path", filePath, "error", err)
				continue
			}
			if err := run.archive.WriteFile(ctx, filePath, buf.Bytes()); err != nil {
				s.log.WarnContext(ctx, "Failed to archive export page", "path", filePath, "error", err)
				continue
			}
			run.report.Pages++
			run.report.Bytes += int64(buf.Len())
		}
	}
	return true
}

// chunk делит сообщения на страницы. Пустой набор дает одну пустую страницу.
func chunk(messages []domain.Message, size int) [][]domain.Message {
	if len(messages) == 0 {
		return [][]domain.Message{{}}
	}
	var out [][]domain.Message
	for start := 0; start < len(messages); start += size {
		end := min(start+size, len(messages))
		out = append(out, messages[start:end])
	}
	return out
}

func threadOf(msg domain.Message, threads []domain.Channel) (domain.Channel, bool) {
	for _, t := range threads {
		if t.ID == msg.ChannelID || (msg.Thread != nil && msg.Thread.ID == t.ID) {
			return t, true
		}
	}
	return domain.Channel{}, false
}

func exportName(channel domain.Channel, guild *domain.Guild) string {
	var parts []string
	if guild != nil && guild.Name != "" {
		parts = append(parts, guild.Name)
	}
	if n := channel.DisplayName(); n != "" {
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return "export"
	}
	return safeName(strings.Join(parts, "_"))
}

// safeName заменяет символы, недопустимые в именах файлов.
func safeName(s string) string {
	out := strings.Trim(unsafeNameRegexp.ReplaceAllString(s, "_"), "_")
	if out == "" {
		return "unnamed"
	}
	return out
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "file"
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}

func percent(i, n int) int {
	if n == 0 {
		return 100
	}
	return i * 100 / n
}
