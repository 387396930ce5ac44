package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	output io.Writer = os.Stderr
	level            = logrus.InfoLevel
	format           = "text"
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component so repeated calls share one instance.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	applyConfig(logger)
	if os.Getenv("LOG_CALLER") == "true" {
		logger.SetReportCaller(true)
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure sets the level and output format for every logger, including
// the ones already handed out. Unknown levels fall back to info.
func Configure(levelStr, formatStr string) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	parsed, err := logrus.ParseLevel(strings.TrimSpace(levelStr))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	level = parsed
	format = strings.ToLower(strings.TrimSpace(formatStr))

	for _, entry := range loggers {
		applyConfig(entry.Logger)
	}
}

// SetOutput redirects all loggers to w.
func SetOutput(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	output = w
	for _, entry := range loggers {
		entry.Logger.SetOutput(w)
	}
}

// ConfigureFromEnv reads LOG_LEVEL and LOG_FORMAT.
func ConfigureFromEnv() {
	Configure(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func applyConfig(logger *logrus.Logger) {
	logger.SetLevel(level)
	logger.SetOutput(output)
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{DisableTimestamp: true})
	default:
		logger.SetFormatter(&TextFormatter{})
	}
}
