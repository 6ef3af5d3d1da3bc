package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// fileWriter returns the rotating file sink for prod/test, or nil when no file is configured.
func fileWriter(config Config) io.Writer {
	if config.LogFile == "" || config.Environment == Dev {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// pairs walks variadic key/value pairs, skipping a dangling key and non-string keys.
func pairs(keysAndValues []interface{}, fn func(key string, value interface{})) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fn(key, keysAndValues[i+1])
		}
	}
}
