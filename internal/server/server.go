package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"discord-chat-manager/internal/core/services"
	"discord-chat-manager/internal/domain"
	applog "discord-chat-manager/internal/log"
	"discord-chat-manager/internal/pkg/config"
	"discord-chat-manager/internal/server/usecase"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxRequestBody  = 1 << 20
)

// JobRunner определяет варианты использования, которые сервер запускает как задачи.
type JobRunner interface {
	Search(ctx context.Context, req usecase.SearchRequest, run usecase.Run) (*usecase.SearchResult, error)
	Delete(ctx context.Context, req usecase.DeleteRequest, run usecase.Run) (*usecase.MutationSummary, error)
	Edit(ctx context.Context, req usecase.EditRequest, run usecase.Run) (*usecase.MutationSummary, error)
	Purge(ctx context.Context, req usecase.PurgeRequest, run usecase.Run) (*services.PurgeReport, error)
	Export(ctx context.Context, req usecase.ExportRequest, run usecase.Run) (*services.ExportReport, error)
}

// HealthChecker проверяет доступность Discord API.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// jobFunc выполняет задачу и возвращает итог и найденные сообщения.
type jobFunc func(ctx context.Context, run usecase.Run) (any, []domain.Message, error)

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	jobs       JobRunner
	health     HealthChecker
	log        *slog.Logger
}

// New создает новый экземпляр Server. health может быть nil.
func New(cfg *config.Config, jobs JobRunner, taskStore *TaskStore, health HealthChecker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		taskStore: taskStore,
		jobs:      jobs,
		health:    health,
		log:       log,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)
	chiRouter.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  &applog.ChiLogAdapter{Logger: log},
		NoColor: true,
	}))
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", s.handleHealth)
	chiRouter.Handle("/metrics", promhttp.Handler())

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/delete", s.handleDelete)
		r.Post("/edit", s.handleEdit)
		r.Post("/purge", s.handlePurge)
		r.Post("/export", s.handleExport)

		r.Get("/tasks/{taskID}", s.handleTask)
		r.Get("/tasks/{taskID}/result", s.handleResult)
		r.Post("/tasks/{taskID}/cancel", s.handleCancel)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.health.Health(ctx); err != nil {
			s.log.WarnContext(r.Context(), "Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req usecase.SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.launch(w, r, TaskKindSearch, func(ctx context.Context, run usecase.Run) (any, []domain.Message, error) {
		res, err := s.jobs.Search(ctx, req, run)
		if err != nil {
			return nil, nil, err
		}
		summary := map[string]any{
			"selected_ids":   res.SelectedIDs,
			"threads":        res.Threads,
			"total_messages": res.TotalMessages,
			"visible":        len(res.Messages),
		}
		return summary, res.Messages, nil
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req usecase.DeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.launch(w, r, TaskKindDelete, func(ctx context.Context, run usecase.Run) (any, []domain.Message, error) {
		res, err := s.jobs.Delete(ctx, req, run)
		return res, nil, err
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req usecase.EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		http.Error(w, "Требуется текст", http.StatusBadRequest)
		return
	}
	s.launch(w, r, TaskKindEdit, func(ctx context.Context, run usecase.Run) (any, []domain.Message, error) {
		res, err := s.jobs.Edit(ctx, req, run)
		return res, nil, err
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req usecase.PurgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.launch(w, r, TaskKindPurge, func(ctx context.Context, run usecase.Run) (any, []domain.Message, error) {
		res, err := s.jobs.Purge(ctx, req, run)
		return res, nil, err
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req usecase.ExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Format == "" {
		req.Format = domain.ExportFormat(s.cfg.Export.Format)
	}
	s.launch(w, r, TaskKindExport, func(ctx context.Context, run usecase.Run) (any, []domain.Message, error) {
		res, err := s.jobs.Export(ctx, req, run)
		return res, nil, err
	})
}

// launch создает задачу и выполняет job в отдельной горутине. Задача живет дольше
// запроса, поэтому ее контекст не наследует контекст запроса.
func (s *Server) launch(w http.ResponseWriter, r *http.Request, kind TaskKind, job jobFunc) {
	taskID := uuid.NewString()
	task := s.taskStore.CreateTask(taskID, kind, s.cfg.Processing.TaskTTL)

	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if s.cfg.Processing.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(context.Background(), s.cfg.Processing.TaskTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(context.Background())
	}
	task.setCancel(cancel)

	log := s.log.With("task_id", taskID, "kind", kind)
	log.InfoContext(r.Context(), "Task created")

	go func() {
		defer cancel()
		_ = s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		result, messages, err := job(taskCtx, usecase.Run{Reporter: task, Stop: task})
		if err != nil {
			log.Error("Task failed", "error", err)
			_ = s.taskStore.UpdateTaskError(taskID, err.Error())
			return
		}
		_ = s.taskStore.UpdateTaskResult(taskID, result, messages)
		log.Info("Task finished", "status", task.Status(), "messages", len(messages))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.findTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

// Pagination - метаданные страницы результата.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// ResultResponse - итог задачи и страница найденных сообщений.
type ResultResponse struct {
	TaskID     string           `json:"task_id"`
	Status     TaskStatus       `json:"status"`
	Result     any              `json:"result"`
	Pagination Pagination       `json:"pagination"`
	Data       []domain.Message `json:"data"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	task, ok := s.findTask(w, r)
	if !ok {
		return
	}

	status := task.Status()
	if status != TaskStatusCompleted && status != TaskStatusCancelled {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		http.Error(w, "Некорректный параметр page", http.StatusBadRequest)
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 {
		http.Error(w, "Некорректный параметр page_size", http.StatusBadRequest)
		return
	}
	pageSize = min(pageSize, maxPageSize)

	result, messages := task.Result()
	total := len(messages)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	data := messages[start:end]
	if data == nil {
		data = []domain.Message{}
	}

	writeJSON(w, http.StatusOK, ResultResponse{
		TaskID: task.ID,
		Status: status,
		Result: result,
		Pagination: Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  (total + pageSize - 1) / pageSize,
		},
		Data: data,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	err := s.taskStore.CancelTask(taskID)
	switch {
	case errors.Is(err, ErrTaskNotFound):
		http.Error(w, "Задача не найдена", http.StatusNotFound)
	case errors.Is(err, ErrTaskFinished):
		http.Error(w, "Задача уже завершена", http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		s.log.InfoContext(r.Context(), "Task cancellation requested", "task_id", taskID)
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "cancelling"})
	}
}

func (s *Server) findTask(w http.ResponseWriter, r *http.Request) (*Task, bool) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return nil, false
	}
	return task, true
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.HTTPServer.Shutdown(ctx)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("Не удалось декодировать тело запроса: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
