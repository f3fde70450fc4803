package logbowl

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Environment variable names
const (
	LogLevelEnvVar  = "ARMORPACK_LOG_LEVEL"
	LogFormatEnvVar = "ARMORPACK_LOG_CONSOLE_FORMATTER"
)

// Log formats
const (
	FormatEmoji = "emoji"
	FormatText  = "text"
	FormatJSON  = "json"
)

var domains = map[string]string{"system": "⚙️", "config": "🔩", "file": "📄", "test": "🧪", "packer": "📦", "armor": "🛡️", "swap": "🔀", "archive": "🗜️", "spec": "📜", "backend": "🏭", "bundle": "🎁", "command": "🐚", "default": "❓"}
var actions = map[string]string{"init": "🌱", "start": "🚀", "stop": "🛑", "read": "📖", "write": "📝", "process": "⚙️", "validate": "🛡️", "execute": "▶️", "update": "🔄", "delete": "🗑️", "error": "🔥", "parse": "🧩", "build": "🏗️", "load": "💡", "verify": "🔍", "pack": "📦", "generate": "✨", "clean": "🧹", "compile": "🔧", "extract": "📤", "move": "🚚", "copy": "📋", "restore": "♻️", "patch": "🩹", "resolve": "🧭", "finish": "🏁", "info": "💡", "default": "⚙️"}
var statuses = map[string]string{"success": "✅", "failure": "❌", "error": "🔥", "warning": "⚠️", "info": "ℹ️", "debug": "🐞", "attempt": "⏳", "skip": "⏭️", "complete": "🏁", "notfound": "❓", "invalid": "💢", "cached": "🎯", "progress": "➡️", "ok": "✅", "default": "➡️"}

func getEmoji(m map[string]string, key string) string {
	if val, ok := m[key]; ok {
		return val
	}
	return m["default"]
}

// Options configures a Logger created with New. Zero values fall back to the
// environment, then to Info level, emoji format and stderr.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// Logger wraps hclog.Logger to provide the domain/action/status API.
type Logger struct {
	hclog.Logger
	format string
}

// Create creates a new Logger configured from the environment.
func Create(name string) Logger {
	return New(name, Options{})
}

// New creates a Logger with explicit options.
func New(name string, o Options) Logger {
	levelStr := o.Level
	if levelStr == "" {
		levelStr = os.Getenv(LogLevelEnvVar)
	}
	level := hclog.LevelFromString(strings.ToUpper(levelStr))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	formatStr := strings.ToLower(o.Format)
	if formatStr == "" {
		formatStr = strings.ToLower(os.Getenv(LogFormatEnvVar))
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		JSONFormat: formatStr == FormatJSON,
		Output:     o.Output,
	}
	return Logger{Logger: hclog.New(opts), format: formatStr}
}

// Discard returns a Logger that drops everything. Used by tests.
func Discard() Logger {
	return Logger{Logger: hclog.NewNullLogger(), format: FormatText}
}

// Verbose reports whether debug output is enabled.
func (l Logger) Verbose() bool {
	return l.Logger != nil && l.Logger.IsDebug()
}

func (l Logger) log(level hclog.Level, domain, action, status, message string, args ...interface{}) {
	if l.Logger == nil {
		return
	}
	switch l.format {
	case FormatText:
		l.Logger.Log(level, fmt.Sprintf("[%s] %s", strings.ToUpper(domain), message), args...)
	case FormatJSON:
		l.Logger.With("domain", domain, "action", action, "status", status).Log(level, message, args...)
	default: // Emoji format
		l.Logger.Log(level, fmt.Sprintf("%s %s %s %s", getEmoji(domains, domain), getEmoji(actions, action), getEmoji(statuses, status), message), args...)
	}
}

func (l Logger) Info(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Info, domain, action, status, message, args...)
}
func (l Logger) Debug(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Debug, domain, action, status, message, args...)
}
func (l Logger) Warn(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Warn, domain, action, status, message, args...)
}
func (l Logger) Error(domain, action, status, message string, args ...interface{}) {
	l.log(hclog.Error, domain, action, status, message, args...)
}
