package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the global logger to write JSON lines to stdout and
// to a rotating file. An empty file disables the file sink.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stdout
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		}
		out = zerolog.MultiLevelWriter(os.Stdout, rotator)
	}

	l := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))

	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLogLevel changes the minimum level. Unknown levels fall back to info.
func SetLogLevel(level string) {
	mu.Lock()
	logger = logger.Level(parseLevel(level))
	mu.Unlock()
}

// SetLoggerForTest swaps the global logger.
func SetLoggerForTest(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs msg with alternating key/value pairs.
func Debug(msg string, keyvals ...interface{}) {
	l := current()
	withFields(l.Debug(), keyvals).Msg(msg)
}

// Info logs msg with alternating key/value pairs.
func Info(msg string, keyvals ...interface{}) {
	l := current()
	withFields(l.Info(), keyvals).Msg(msg)
}

// Warn logs msg with alternating key/value pairs.
func Warn(msg string, keyvals ...interface{}) {
	l := current()
	withFields(l.Warn(), keyvals).Msg(msg)
}

// Error logs msg with alternating key/value pairs.
func Error(msg string, keyvals ...interface{}) {
	l := current()
	withFields(l.Error(), keyvals).Msg(msg)
}

func withFields(e *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	if e == nil {
		return e
	}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			e = e.Interface(key, nil)
			break
		}
		switch v := keyvals[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
