package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL       = "https://discord.com/api/v9"
	defaultUserAgent     = "discord-chat-manager/1.0"
	defaultRateLimitWait = 5 * time.Second
	rateLimitBuffer      = time.Second
	minRateLimitWait     = 2 * time.Second
	defaultSearchDelay   = 3 * time.Second
)

// Config содержит параметры клиента REST API.
type Config struct {
	Token              string
	BaseURL            string
	UserAgent          string
	RequestsPerSecond  float64
	Burst              int
	MaxRetries         int
	RequestTimeout     time.Duration
	SearchIndexRetries int
	SearchRetryDelay   time.Duration
	Breaker            BreakerConfig
}

// BreakerConfig - параметры автомата защиты.
type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// Client - потокобезопасный клиент REST API Discord. Запросы проходят через
// ограничитель частоты и автомат защиты, ответы 429 повторяются с ожиданием.
type Client struct {
	id         string
	baseURL    string
	token      string
	userAgent  string
	maxRetries int

	searchRetries int
	searchDelay   time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *Metrics
	clock      func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        *slog.Logger

	mu             sync.RWMutex
	unhealthyUntil time.Time
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	cfg = withDefaults(cfg)

	c := &Client{
		id:            uuid.NewString(),
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		userAgent:     cfg.UserAgent,
		maxRetries:    cfg.MaxRetries,
		searchRetries: cfg.SearchIndexRetries,
		searchDelay:   cfg.SearchRetryDelay,
		httpClient:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		metrics:       NewMetrics(nil),
		clock:         time.Now,
		sleep:         sleepContext,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("client_id", c.id)

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "discord-api",
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.SearchIndexRetries <= 0 {
		cfg.SearchIndexRetries = 5
	}
	if cfg.SearchRetryDelay <= 0 {
		cfg.SearchRetryDelay = defaultSearchDelay
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	return cfg
}

// ID возвращает идентификатор экземпляра клиента.
func (c *Client) ID() string {
	return c.id
}

// Health выполняет легкий запрос, чтобы проверить токен и доступность API.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.GetCurrentUser(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// request описывает один вызов API.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// response - успешно полученный ответ (статус < 500, кроме 429).
type response struct {
	status int
	header http.Header
	body   []byte
}

// rateLimitBody - тело ответа 429.
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// do выполняет запрос, повторяя его при ответах 429, и декодирует тело в out.
// Возвращает HTTP-статус успешного ответа.
func (c *Client) do(ctx context.Context, r request, out any) (int, error) {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return 0, fmt.Errorf("failed to encode %s request: %w", r.op, err)
		}
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.waitCooldown(ctx); err != nil {
			return 0, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		resp, err := c.send(ctx, r, payload)
		if err != nil {
			return 0, err
		}

		if resp.status == http.StatusTooManyRequests {
			wait, global := rateLimitWait(resp)
			c.metrics.rateLimit(r.op, global)
			c.log.Warn("rate limited", "operation", r.op, "wait", wait, "global", global, "attempt", attempt+1)
			if global {
				c.setCooldown(wait)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return 0, err
			}
			continue
		}

		if resp.status >= http.StatusBadRequest {
			return resp.status, decodeAPIError(resp)
		}
		if out != nil && len(resp.body) > 0 {
			if err := json.Unmarshal(resp.body, out); err != nil {
				return resp.status, fmt.Errorf("failed to decode %s response: %w", r.op, err)
			}
		}
		return resp.status, nil
	}

	return 0, fmt.Errorf("%s: %w", r.op, ErrRateLimited)
}

// send отправляет запрос через автомат защиты. Ответы 5xx и сетевые ошибки
// считаются отказами, остальные статусы возвращаются как есть.
func (c *Client) send(ctx context.Context, r request, payload []byte) (*response, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r), bodyReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("User-Agent", c.userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		started := c.clock()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		c.metrics.observe(r.op, resp.StatusCode, c.clock().Sub(started))

		out := &response{status: resp.StatusCode, header: resp.Header, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return out, decodeAPIError(out)
		}
		return out, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", r.op, ErrBreakerOpen)
	}
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", r.op, err)
	}
	return res.(*response), nil
}

func (c *Client) endpoint(r request) string {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}

// rateLimitWait вычисляет паузу после 429: максимум из заголовков и тела ответа,
// плюс запас, но не меньше нижней границы.
func rateLimitWait(resp *response) (time.Duration, bool) {
	wait := defaultRateLimitWait
	var body rateLimitBody
	_ = json.Unmarshal(resp.body, &body)

	candidates := []float64{body.RetryAfter}
	for _, h := range []string{"Retry-After", "X-RateLimit-Reset-After"} {
		if v, err := strconv.ParseFloat(resp.header.Get(h), 64); err == nil {
			candidates = append(candidates, v)
		}
	}
	longest := 0.0
	for _, v := range candidates {
		longest = math.Max(longest, v)
	}
	if longest > 0 {
		wait = time.Duration(longest * float64(time.Second))
	}

	wait += rateLimitBuffer
	if wait < minRateLimitWait {
		wait = minRateLimitWait
	}
	global := body.Global || resp.header.Get("X-RateLimit-Global") == "true"
	return wait, global
}

func decodeAPIError(resp *response) error {
	apiErr := &APIError{Status: resp.status}
	if err := json.Unmarshal(resp.body, apiErr); err != nil {
		apiErr.Message = string(resp.body)
	}
	return apiErr
}

// waitCooldown ждет окончания глобального ограничения, если оно активно.
func (c *Client) waitCooldown(ctx context.Context) error {
	c.mu.RLock()
	until := c.unhealthyUntil
	c.mu.RUnlock()

	if wait := until.Sub(c.clock()); wait > 0 {
		c.log.Debug("waiting for global rate limit", "wait", wait)
		return c.sleep(ctx, wait)
	}
	return nil
}

func (c *Client) setCooldown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unhealthyUntil = c.clock().Add(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
