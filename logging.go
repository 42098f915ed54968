package chipc

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the structured logger shared by every chipc
// component (compiler, sketch-grid generator, solver driver, SMT
// verifier, CEGIS controller). Fields are attached per call site via
// WithFields rather than formatted into the message, and rendered by
// logrus's text formatter as key=value pairs.
func NewLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}
