// Package logging is the structured logger: leveled, categorized,
// correlated log entries backed by zerolog, a bounded ring buffer, a
// non-blocking pub/sub fan-out for live subscribers, and runtime
// reconfiguration of levels/format/payload inclusion.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors an RFC 5424-aligned severity ladder, plus an OFF rung
// that disables a category or endpoint entirely.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "OFF"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.Disabled
	}
}

// Category is one of the fixed logging domains a log entry belongs to.
type Category string

const (
	CategoryHTTP       Category = "http"
	CategoryAuth       Category = "auth"
	CategoryScimUser   Category = "scim.user"
	CategoryScimGroup  Category = "scim.group"
	CategoryScimPatch  Category = "scim.patch"
	CategoryScimFilter Category = "scim.filter"
	CategoryDiscovery  Category = "scim.discovery"
	CategoryEndpoint   Category = "endpoint"
	CategoryDatabase   Category = "database"
	CategoryBackup     Category = "backup"
	CategoryOAuth      Category = "oauth"
	CategoryGeneral    Category = "general"
)

// Entry is a single emitted log record, the unit ring buffer storage and
// subscriber delivery operate on.
type Entry struct {
	Time       time.Time      `json:"time"`
	Level      Level          `json:"-"`
	LevelName  string         `json:"level"`
	Category   Category       `json:"category"`
	Message    string         `json:"message"`
	RequestID  string         `json:"requestId,omitempty"`
	EndpointID string         `json:"endpointId,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Stack      string         `json:"stack,omitempty"`
}

// Format selects the output rendering for the stdout/stderr sink.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config is the live-reconfigurable state, exposed and mutated through the
// admin endpoints in server/admin.go.
type Config struct {
	GlobalLevel        Level
	CategoryLevels     map[Category]Level
	EndpointLevels     map[string]Level
	Format             Format
	IncludePayloads    bool
	IncludeStackTraces bool
	MaxPayloadSize     int
}

func DefaultConfig() Config {
	return Config{
		GlobalLevel:    LevelInfo,
		CategoryLevels: map[Category]Level{},
		EndpointLevels: map[string]Level{},
		Format:         FormatJSON,
		IncludePayloads: true,
		IncludeStackTraces: true,
		MaxPayloadSize: 8 * 1024,
	}
}

// Logger is the process-wide structured logger.
type Logger struct {
	mu     sync.RWMutex
	cfg    Config
	out    io.Writer
	errOut io.Writer

	ring *RingBuffer
	pub  *PubSub
}

func New(ringSize int) *Logger {
	return &Logger{
		cfg:    DefaultConfig(),
		out:    os.Stdout,
		errOut: os.Stderr,
		ring:   NewRingBuffer(ringSize),
		pub:    NewPubSub(),
	}
}

func (l *Logger) Reconfigure(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

func (l *Logger) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// resolveLevel applies the override resolution order: endpoint override,
// then category override, then global.
func (l *Logger) resolveLevel(category Category, endpointID string) Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if endpointID != "" {
		if lvl, ok := l.cfg.EndpointLevels[endpointID]; ok {
			return lvl
		}
	}
	if lvl, ok := l.cfg.CategoryLevels[category]; ok {
		return lvl
	}
	return l.cfg.GlobalLevel
}

// Log emits an entry if it passes the resolved level check: writes it to
// stdout/stderr, appends it to the ring buffer, and fans it out to
// subscribers.
func (l *Logger) Log(ctx context.Context, level Level, category Category, message string, fields map[string]any) {
	threshold := l.resolveLevel(category, EndpointIDFromContext(ctx))
	if level < threshold || threshold == LevelOff {
		return
	}

	entry := Entry{
		Time:       time.Now().UTC(),
		Level:      level,
		LevelName:  level.String(),
		Category:   category,
		Message:    message,
		RequestID:  RequestIDFromContext(ctx),
		EndpointID: EndpointIDFromContext(ctx),
		Fields:     fields,
	}

	cfg := l.Config()
	sanitize(&entry, cfg)

	l.write(entry, cfg)
	l.ring.Append(entry)
	l.pub.Publish(entry)
}

func (l *Logger) write(entry Entry, cfg Config) {
	w := l.out
	if entry.Level >= LevelWarn {
		w = l.errOut
	}

	zl := zerolog.New(w).Level(entry.Level.zerolog())
	if cfg.Format == FormatPretty {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).Level(entry.Level.zerolog())
	}

	ev := zl.WithLevel(entry.Level.zerolog()).
		Str("category", string(entry.Category)).
		Time("time", entry.Time)
	if entry.RequestID != "" {
		ev = ev.Str("requestId", shortID(entry.RequestID))
	}
	if entry.EndpointID != "" {
		ev = ev.Str("endpointId", entry.EndpointID)
	}
	if entry.DurationMs > 0 {
		ev = ev.Int64("durationMs", entry.DurationMs)
	}
	for k, v := range entry.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(entry.Message)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (l *Logger) Trace(ctx context.Context, category Category, msg string, fields map[string]any) {
	l.Log(ctx, LevelTrace, category, msg, fields)
}
func (l *Logger) Debug(ctx context.Context, category Category, msg string, fields map[string]any) {
	l.Log(ctx, LevelDebug, category, msg, fields)
}
func (l *Logger) Info(ctx context.Context, category Category, msg string, fields map[string]any) {
	l.Log(ctx, LevelInfo, category, msg, fields)
}
func (l *Logger) Warn(ctx context.Context, category Category, msg string, fields map[string]any) {
	l.Log(ctx, LevelWarn, category, msg, fields)
}
func (l *Logger) Error(ctx context.Context, category Category, msg string, fields map[string]any) {
	l.Log(ctx, LevelError, category, msg, fields)
}

// Ring exposes the ring buffer for admin queries.
func (l *Logger) Ring() *RingBuffer { return l.ring }

// Subscribe registers a live subscriber; see PubSub for delivery semantics.
func (l *Logger) Subscribe() (<-chan Entry, func()) {
	return l.pub.Subscribe()
}
