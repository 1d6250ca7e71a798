package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Log is a Meter that writes query activity to a slog.Logger,
// reporting byte counts at most once per second per query.
type Log struct {
	logger *slog.Logger

	mu      sync.Mutex
	lastLog map[string]time.Time
}

// NewLog returns a Log meter. A nil logger falls back to slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}

	return &Log{
		logger:  logger,
		lastLog: make(map[string]time.Time),
	}
}

func (l *Log) Start(queryID, text string, _ Canceler) {
	l.logger.Info("query started", "query_id", queryID, "text", text)
}

func (l *Log) Progress(queryID string, transferred, total int64) {
	l.mu.Lock()
	last := l.lastLog[queryID]
	if time.Since(last) < time.Second && transferred != total {
		l.mu.Unlock()
		return
	}
	l.lastLog[queryID] = time.Now()
	l.mu.Unlock()

	attrs := []any{"query_id", queryID, "transferred", transferred}
	if total >= 0 {
		attrs = append(attrs, "total", total,
			"progress", fmt.Sprintf("%.1f%%", float64(transferred)/float64(total)*100))
	}
	l.logger.Info("transferring", attrs...)
}

func (l *Log) End(queryID string) {
	l.mu.Lock()
	delete(l.lastLog, queryID)
	l.mu.Unlock()

	l.logger.Info("query ended", "query_id", queryID)
}
