// Package chatlog writes conversation events as NDJSON, one file per session.
package chatlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Config controls where conversation events are written.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one logged conversation event.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	Guide      string         `json:"guide,omitempty"`
	Topic      string         `json:"topic,omitempty"`
	Phase      int            `json:"phase,omitempty"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events.
type Logger interface {
	Log(Event)
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Log implements Logger.
func (Noop) Log(Event) {}

// Close implements Logger.
func (Noop) Close() error { return nil }

// FileLogger writes events asynchronously from a single goroutine.
type FileLogger struct {
	cfg    Config
	log    *slog.Logger
	queue  chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

// New returns a Noop when logging is disabled, otherwise a started FileLogger.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Enabled {
		if cfg.Dir == "" {
			return nil, errors.New("chatlog: Dir is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create conversation log dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if cfg.GlobalPath == "" {
			return nil, errors.New("chatlog: GlobalPath is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &FileLogger{
		cfg:   cfg,
		log:   logger,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event. It never blocks; events are dropped when the queue is full.
func (l *FileLogger) Log(ev Event) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if ev.Content == "" {
		ev.Content = CleanForReadability(ev.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.log.Warn("Conversation log queue full, dropping event",
			"user_id", ev.UserID,
			"session_id", ev.SessionID,
			"event_type", ev.EventType,
		)
	}
}

// Close drains pending events and stops the writer.
func (l *FileLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *FileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		line, err := json.Marshal(ev)
		if err != nil {
			l.log.Warn("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')
		if l.cfg.Enabled {
			path := filepath.Join(l.cfg.Dir, safeName(ev.UserID), safeName(ev.SessionID)+".ndjson")
			if err := appendLine(path, line); err != nil {
				l.log.Warn("Failed to write conversation log", "error", err, "path", path)
			}
		}
		if l.cfg.GlobalEnabled {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.log.Warn("Failed to write global conversation log", "error", err, "path", l.cfg.GlobalPath)
			}
		}
	}
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var (
	ansiPattern  = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x07]*\x07`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

// CleanForReadability strips ANSI escapes and collapses runs of blanks.
func CleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
