package logger

// Logger defines the standard behavior for our loggers.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
}

// Sync flushes l when its backend buffers entries. Other loggers are a no-op.
func Sync(l Logger) error {
	if s, ok := l.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// Environment represents the deployment environment
type Environment string

const (
	Dev  Environment = "dev"
	Test Environment = "test"
	Prod Environment = "prod"
)

// ParseEnvironment maps a RUN_TYPE value onto an Environment, falling back to Test.
func ParseEnvironment(runType string) Environment {
	switch Environment(runType) {
	case Dev, Prod:
		return Environment(runType)
	default:
		return Test
	}
}

// Config holds the configuration for logger initialization
type Config struct {
	Environment Environment
	LogLevel    string
	LogFile     string
	MaxSize     int  // maximum size in megabytes before rotation
	MaxBackups  int  // maximum number of old log files to retain
	MaxAge      int  // maximum number of days to retain old log files
	Compress    bool // whether to compress rotated log files
}
