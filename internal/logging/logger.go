// Package logging provides the component-scoped logger used across the
// playback core, grounded on the teacher corpus's ComponentLogger
// pattern: a named, colorized, level-gated wrapper around the standard
// log package rather than a full structured-logging framework.
package logging

import (
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"
)

// LogLevel is one of the four levels a Logger can emit.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Logger.
type Config struct {
	ComponentName string
	Color         color.Attribute
	EnabledLevels []LogLevel
	// Output always goes through the standard logger; log.SetOutput
	// controls its destination.
}

// Logger is a component-scoped, level-gated logger.
type Logger struct {
	name    string
	colorFn func(format string, a ...interface{}) string
	enabled map[LogLevel]bool
}

// New builds a Logger from Config. With no EnabledLevels, INFO/WARN/
// ERROR are enabled and DEBUG is gated off by default; callers pass
// DEBUG explicitly when PlaybackConfig.DebugLogging is set.
func New(cfg Config) *Logger {
	enabled := make(map[LogLevel]bool, 4)
	if len(cfg.EnabledLevels) == 0 {
		enabled[INFO] = true
		enabled[WARN] = true
		enabled[ERROR] = true
	} else {
		for _, lvl := range cfg.EnabledLevels {
			enabled[lvl] = true
		}
	}
	c := color.New(cfg.Color)
	return &Logger{
		name:    cfg.ComponentName,
		colorFn: c.SprintfFunc(),
		enabled: enabled,
	}
}

// WithDebug returns a copy of l with DEBUG additionally enabled.
func (l *Logger) WithDebug(debug bool) *Logger {
	clone := *l
	clone.enabled = make(map[LogLevel]bool, len(l.enabled)+1)
	for k, v := range l.enabled {
		clone.enabled[k] = v
	}
	clone.enabled[DEBUG] = debug
	return &clone
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.enabled[level] {
		return
	}
	msg := fmt.Sprintf(format, args...)
	prefix := l.colorFn("[%s]", l.name)
	log.Println(strings.TrimSpace(fmt.Sprintf("%s %s %s", prefix, level, msg)))
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }
