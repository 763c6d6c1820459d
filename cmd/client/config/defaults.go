package config

import "time"

const (
	DefaultServerURL    = "http://localhost:8080"
	DefaultPollInterval = 2 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultPageSize     = 50
)

// Ширина колонок текстового вывода по умолчанию.
const (
	DefaultAuthorColumnWidth  = 20
	DefaultContentColumnWidth = 60
)
