// Package logging provides categorized, config-driven logging for DocLore.
// Each subsystem logs under its own category; categories can be toggled
// individually so a noisy subsystem (embedding, store) can be silenced
// without losing agent-loop visibility. Output goes through zap cores:
// a console core for warnings and errors, and an optional per-category
// file core under <data dir>/logs/ when debug mode is on.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config, migrations
	CategoryChunker   Category = "chunker"   // Document chunking
	CategoryEmbedding Category = "embedding" // Embedding engine
	CategoryStore     Category = "store"     // SQLite store operations
	CategoryContext   Category = "context"   // Context window management
	CategoryTools     Category = "tools"     // Tool execution
	CategoryProtocol  Category = "protocol"  // Tool-call parsing
	CategoryAgent     Category = "agent"     // Planner/executor/checker
	CategoryLLM       Category = "llm"       // LLM API calls
	CategorySearch    Category = "search"    // Web search and fetch
	CategoryVersion   Category = "version"   // File version history
	CategorySync      Category = "sync"      // Filesystem sync
	CategorySession   Category = "session"   // Chat sessions
)

// Logger wraps a zap sugared logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	loggers    = make(map[Category]*Logger)
	baseLogger *zap.Logger
	debugMode  bool
	categories map[string]bool // nil means all enabled
	logsDir    string
)

// Options controls logger initialization.
type Options struct {
	// DebugMode enables debug-level logging and per-category log files.
	DebugMode bool

	// Categories toggles individual categories. Empty enables all.
	Categories map[string]bool

	// Dir is where log files are written when DebugMode is on.
	Dir string
}

// Initialize configures the logging system. Safe to call more than once;
// the last call wins. Before Initialize, loggers write warnings and errors
// to stderr only.
func Initialize(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	debugMode = opts.DebugMode
	categories = opts.Categories
	logsDir = opts.Dir

	if debugMode && logsDir != "" {
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	baseLogger = buildBase()
	loggers = make(map[Category]*Logger)
	return nil
}

// Shutdown flushes any buffered log output.
func Shutdown() {
	mu.RLock()
	defer mu.RUnlock()
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
}

func buildBase() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	level := zapcore.WarnLevel
	if debugMode {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := newLogger(cat)
	loggers[cat] = l
	return l
}

func newLogger(cat Category) *Logger {
	base := baseLogger
	if base == nil {
		base = buildBase()
	}

	cores := []zapcore.Core{base.Core()}

	// Per-category file core in debug mode.
	if debugMode && logsDir != "" {
		path := filepath.Join(logsDir, string(cat)+".log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			encCfg := zap.NewProductionEncoderConfig()
			encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encCfg),
				zapcore.Lock(f),
				zapcore.DebugLevel,
			))
		}
	}

	lg := zap.New(zapcore.NewTee(cores...)).Named(string(cat))
	return &Logger{category: cat, sugar: lg.Sugar()}
}

func enabled(cat Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !debugMode {
		return false
	}
	if len(categories) == 0 {
		return true
	}
	return categories[string(cat)]
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if enabled(l.category) {
		l.sugar.Infof(format, args...)
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if enabled(l.category) {
		l.sugar.Debugf(format, args...)
	}
}

// Warn logs at warn level. Warnings are always emitted.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs at error level. Errors are always emitted.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}
