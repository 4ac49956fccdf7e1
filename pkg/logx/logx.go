// Package logx provides structured logging with session-scoped prefixes and
// environment-controlled debug domains.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled, session-prefixed log lines.
type Logger struct {
	sessionID string
	logger    *log.Logger
}

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

//nolint:gochecknoglobals // Process-wide debug switches, set once at startup
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex
)

// Debug configuration comes from the environment: DEBUG=1 enables all
// domains, DEBUG_DOMAINS=router,trend restricts output to those domains.
func init() { //nolint:gochecknoinits // Required for env var initialization
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Enabled = true
		debugConfig.Domains = make(map[string]bool)
		for _, d := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(d)] = true
		}
	}
}

// NewLogger creates a logger whose lines carry the given session or component ID.
func NewLogger(sessionID string) *Logger {
	return &Logger{
		sessionID: sessionID,
		logger:    log.New(os.Stderr, "", 0),
	}
}

// SetDebug overrides the environment-derived debug configuration.
func SetDebug(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	debugConfig.Domains = nil
	if len(domains) > 0 {
		debugConfig.Domains = make(map[string]bool, len(domains))
		for _, d := range domains {
			debugConfig.Domains[d] = true
		}
	}
}

// IsDebugEnabled reports whether debug logging is on for any domain.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain reports whether debug logging is on for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%s [%s] [%s] %s", timestamp, l.sessionID, level, message)
}

// Debug logs a debug message if debug logging is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if IsDebugEnabled() {
		l.log(LevelDebug, format, args...)
	}
}

// DebugDomain logs a debug message if the given domain is enabled.
func (l *Logger) DebugDomain(domain, format string, args ...any) {
	if IsDebugEnabledForDomain(domain) {
		l.log(LevelDebug, "[%s] %s", domain, fmt.Sprintf(format, args...))
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// GetSessionID returns the ID this logger is scoped to.
func (l *Logger) GetSessionID() string {
	return l.sessionID
}

// WithSessionID returns a new logger scoped to a different ID.
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return &Logger{
		sessionID: sessionID,
		logger:    l.logger,
	}
}

// Errorf logs an error and returns it, for call sites that both log and propagate.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	NewLogger("global").Error("%v", err)
	return err
}

// Wrap annotates an error with a message while preserving the original for errors.Is/As.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
