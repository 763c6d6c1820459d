package discord

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited возвращается, когда запрос остается ограниченным после всех повторов.
	ErrRateLimited = errors.New("discord: still rate limited after retries")
	// ErrBreakerOpen возвращается, когда автомат защиты не пропускает запросы.
	ErrBreakerOpen = errors.New("discord: circuit breaker is open")
	// ErrSearchNotReady возвращается, когда индекс поиска так и не стал доступен.
	ErrSearchNotReady = errors.New("discord: search index not ready")
	// ErrAssetTooLarge возвращается, когда файл превышает допустимый размер.
	ErrAssetTooLarge = errors.New("discord: asset exceeds max size")
)

// APIError - неуспешный ответ Discord.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord api error: status %d", e.Status)
	}
	return fmt.Sprintf("discord api error: status %d, code %d: %s", e.Status, e.Code, e.Message)
}

// IsStatus сообщает, что err - APIError с указанным HTTP-статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
