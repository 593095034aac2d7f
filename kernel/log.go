// kernel/log.go
package kernel

import "github.com/aykutozdemir/fsmos-go/platform"

// LogLevel matches spec §6: DEBUG=0, INFO=1, WARN=2, ERROR=3. A
// message below the configured threshold is dropped before formatting,
// so the logger never pulls in fmt on the hot path — the same
// "avoid fmt on MCU" discipline as the retrieved selftest's tiny
// logger.
type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes level-filtered text through a platform.Sink one byte
// at a time.
type Logger struct {
	sink  platform.Sink
	level LogLevel
}

// NewLogger builds a Logger. A nil sink makes every call a no-op,
// which keeps the scheduler usable in tests that don't care about logs.
func NewLogger(sink platform.Sink, level LogLevel) *Logger {
	return &Logger{sink: sink, level: level}
}

func (l *Logger) log(level LogLevel, prefix, msg string) {
	if l == nil || l.sink == nil || level < l.level {
		return
	}
	for i := 0; i < len(prefix); i++ {
		l.sink.WriteByte(prefix[i])
	}
	for i := 0; i < len(msg); i++ {
		l.sink.WriteByte(msg[i])
	}
	l.sink.WriteByte('\n')
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, "[D] ", msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, "[I] ", msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, "[W] ", msg) }
func (l *Logger) Error(msg string) { l.log(LevelError, "[E] ", msg) }

// SetLevel adjusts the current threshold, mirroring the scheduler's
// "current log level" field (spec §4.5, Scheduler owns fields list).
func (l *Logger) SetLevel(level LogLevel) { l.level = level }
