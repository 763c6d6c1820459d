package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"discord-chat-manager/internal/domain"
)

// ErrTaskFailed возвращается WaitTask для задачи со статусом failed.
var ErrTaskFailed = errors.New("задача завершилась с ошибкой")

// StatusError - неожиданный HTTP-статус ответа сервера.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

// Client - клиент для взаимодействия с API сервера задач.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает новый экземпляр Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// API-ответы
type StartTaskResponse struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponse struct {
	TaskID             string                `json:"task_id"`
	Kind               string                `json:"kind"`
	Status             string                `json:"status"`
	ErrorMessage       string                `json:"error_message,omitempty"`
	StatusText         string                `json:"status_text,omitempty"`
	Modifying          bool                  `json:"modifying"`
	Progress           *ProgressDTO          `json:"progress,omitempty"`
	Notifications      []domain.Notification `json:"notifications,omitempty"`
	NotificationsTotal int                   `json:"notifications_total"`
}

// ProgressDTO - прогресс задачи без декодирования сущности.
type ProgressDTO struct {
	Kind   string          `json:"kind,omitempty"`
	Index  int             `json:"index"`
	Total  int             `json:"total"`
	Entity json.RawMessage `json:"entity,omitempty"`
}

// Finished сообщает, что задача больше не выполняется.
func (s TaskStatusResponse) Finished() bool {
	switch s.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// PaginationDTO представляет собой объект пагинации из ответа сервера.
type PaginationDTO struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

type TaskResultResponse struct {
	TaskID     string           `json:"task_id"`
	Status     string           `json:"status"`
	Result     json.RawMessage  `json:"result"`
	Pagination PaginationDTO    `json:"pagination"`
	Data       []domain.Message `json:"data"`
}

// StartTask отправляет запрос на запуск задачи вида kind (search, delete, edit, purge, export).
func (c *Client) StartTask(ctx context.Context, kind string, body any) (*StartTaskResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var result StartTaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/"+url.PathEscape(kind), bytes.NewReader(payload), http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTaskStatus запрашивает статус задачи.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	var result TaskStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTaskResult запрашивает результат завершенной задачи.
func (c *Client) GetTaskResult(ctx context.Context, taskID string, page, pageSize int) (*TaskResultResponse, error) {
	path := fmt.Sprintf("/api/v1/tasks/%s/result?page=%d&page_size=%d", url.PathEscape(taskID), page, pageSize)
	var result TaskResultResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelTask просит сервер остановить задачу.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(taskID)+"/cancel", nil, http.StatusAccepted, nil)
}

// WaitTask опрашивает статус задачи с интервалом interval, пока она не завершится.
// onStatus вызывается после каждого опроса и может быть nil.
func (c *Client) WaitTask(ctx context.Context, taskID string, interval time.Duration, onStatus func(*TaskStatusResponse)) (*TaskStatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onStatus != nil {
			onStatus(status)
		}
		if status.Finished() {
			if status.Status == "failed" {
				return status, fmt.Errorf("%w: %s", ErrTaskFailed, status.ErrorMessage)
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
