package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"discord-chat-manager/internal/core/services"
	"discord-chat-manager/internal/domain"
)

// TaskStatus представляет статус задачи
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsFinal сообщает, что задача больше не выполняется.
func (s TaskStatus) IsFinal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// TaskKind - вид задачи.
type TaskKind string

const (
	TaskKindSearch TaskKind = "search"
	TaskKindDelete TaskKind = "delete"
	TaskKindEdit   TaskKind = "edit"
	TaskKindPurge  TaskKind = "purge"
	TaskKindExport TaskKind = "export"
)

// maxNotifications - сколько последних уведомлений хранит задача.
const maxNotifications = 50

var (
	ErrTaskNotFound = errors.New("задача не найдена")
	ErrTaskFinished = errors.New("задача уже завершена")
)

// Task представляет собой одну задачу. Задача принимает прогресс и уведомления
// сервисов ядра и служит для них флагом остановки.
type Task struct {
	ID        string
	Kind      TaskKind
	CreatedAt time.Time
	ExpiresAt time.Time // Для автоматической очистки

	mu            sync.RWMutex
	status        TaskStatus
	errorMessage  string
	result        any
	messages      []domain.Message
	progress      domain.Progress
	statusText    string
	modifying     bool
	notifications []domain.Notification
	notified      int
	stop          services.StopFlag
	cancel        context.CancelFunc
}

// Notify сохраняет уведомление, вытесняя самые старые.
func (t *Task) Notify(n domain.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifications = append(t.notifications, n)
	t.notified++
	if over := len(t.notifications) - maxNotifications; over > 0 {
		t.notifications = slices.Delete(t.notifications, 0, over)
	}
}

func (t *Task) SetModifying(modifying bool) {
	t.mu.Lock()
	t.modifying = modifying
	t.mu.Unlock()
}

func (t *Task) SetProgress(p domain.Progress) {
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

func (t *Task) SetStatus(status string) {
	t.mu.Lock()
	t.statusText = status
	t.mu.Unlock()
}

// Stopped сообщает, что задачу попросили остановиться.
func (t *Task) Stopped() bool {
	return t.stop.Stopped()
}

// Cancel выставляет флаг остановки и отменяет контекст задачи.
func (t *Task) Cancel() {
	t.stop.Stop()
	t.mu.RLock()
	cancel := t.cancel
	t.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Task) setCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
}

// Status возвращает текущий статус задачи.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Result возвращает итог задачи и найденные сообщения.
func (t *Task) Result() (any, []domain.Message) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.messages
}

// TaskView - состояние задачи для ответа API.
type TaskView struct {
	TaskID        string                `json:"task_id"`
	Kind          TaskKind              `json:"kind"`
	Status        TaskStatus            `json:"status"`
	ErrorMessage  string                `json:"error_message,omitempty"`
	StatusText    string                `json:"status_text,omitempty"`
	Modifying     bool                  `json:"modifying"`
	Progress      *domain.Progress      `json:"progress,omitempty"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
	// NotificationsTotal - сколько уведомлений пришло за все время, включая вытесненные.
	NotificationsTotal int       `json:"notifications_total"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// Snapshot возвращает согласованную копию состояния задачи.
func (t *Task) Snapshot() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	view := TaskView{
		TaskID:             t.ID,
		Kind:               t.Kind,
		Status:             t.status,
		ErrorMessage:       t.errorMessage,
		StatusText:         t.statusText,
		Modifying:          t.modifying,
		Notifications:      slices.Clone(t.notifications),
		NotificationsTotal: t.notified,
		CreatedAt:          t.CreatedAt,
		ExpiresAt:          t.ExpiresAt,
	}
	if !t.progress.IsEmpty() {
		p := t.progress
		view.Progress = &p
	}
	return view
}

// TaskStore управляет хранением и извлечением задач
type TaskStore struct {
	tasks map[string]*Task
	mutex sync.RWMutex
	now   func() time.Time
}

// NewTaskStore создает новый экземпляр TaskStore
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// CreateTask создает новую задачу со статусом 'pending'
func (ts *TaskStore) CreateTask(taskID string, kind TaskKind, ttl time.Duration) *Task {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.now()
	task := &Task{
		ID:        taskID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		status:    TaskStatusPending,
	}
	ts.tasks[taskID] = task
	return task
}

// UpdateTaskStatus обновляет статус задачи
func (ts *TaskStore) UpdateTaskStatus(taskID string, status TaskStatus) error {
	return ts.update(taskID, func(t *Task) {
		t.status = status
	})
}

// UpdateTaskResult сохраняет результат. Остановленная задача получает статус
// 'cancelled' и сохраняет частичный результат, иначе статус 'completed'.
func (ts *TaskStore) UpdateTaskResult(taskID string, result any, messages []domain.Message) error {
	return ts.update(taskID, func(t *Task) {
		t.status = TaskStatusCompleted
		if t.stop.Stopped() {
			t.status = TaskStatusCancelled
		}
		t.result = result
		t.messages = messages
	})
}

// UpdateTaskError обновляет сообщение об ошибке и статус задачи на 'failed'
func (ts *TaskStore) UpdateTaskError(taskID string, errorMessage string) error {
	return ts.update(taskID, func(t *Task) {
		t.status = TaskStatusFailed
		t.errorMessage = errorMessage
	})
}

func (ts *TaskStore) update(taskID string, fn func(t *Task)) error {
	task, err := ts.GetTask(taskID)
	if err != nil {
		return err
	}
	task.mu.Lock()
	fn(task)
	task.mu.Unlock()
	return nil
}

// GetTask извлекает задачу по ее ID
func (ts *TaskStore) GetTask(taskID string) (*Task, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return task, nil
}

// CancelTask просит задачу остановиться. Сервисы замечают флаг в ближайшей
// контрольной точке, поэтому статус меняется не сразу.
func (ts *TaskStore) CancelTask(taskID string) error {
	task, err := ts.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status().IsFinal() {
		return ErrTaskFinished
	}
	task.Cancel()
	return nil
}

// CleanupExpired удаляет просроченные задачи из хранилища, останавливая незавершенные
func (ts *TaskStore) CleanupExpired() {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.now()
	for taskID, task := range ts.tasks {
		if now.After(task.ExpiresAt) {
			task.Cancel()
			delete(ts.tasks, taskID)
		}
	}
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных задач
func (ts *TaskStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.CleanupExpired()
			}
		}
	}()
}
