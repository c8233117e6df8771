// Package obslog is the scheduler's logging seam: priority-set failures,
// invalid transitions in release builds and payload errors log through the
// single *logrus.Logger this package owns (admission rejections are
// returned to the caller, not logged), instead of printf-ing the way
// the teacher's demo server does in cmd/server/main.go.
package obslog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Log returns the package-wide logger, lazily initialized with a plain
// text formatter and Info level.
func Log() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.InfoLevel)
	})
	return logger
}

// SetLevel adjusts the package-wide logger's verbosity.
func SetLevel(level logrus.Level) {
	Log().SetLevel(level)
}
