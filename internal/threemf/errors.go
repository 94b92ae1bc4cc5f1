package threemf

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// VersionError reports an archive saved by a newer slicer than this
// codec understands. It is distinguished so callers can offer to load
// anyway with version checking disabled.
type VersionError struct {
	Found int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("the file has been saved with a newer version (%d > %d) and is not compatible", e.Found, Version3MF)
}

// IsVersionError reports whether err wraps a VersionError.
func IsVersionError(err error) bool {
	var ve *VersionError
	return errors.As(err, &ve)
}

// ErrNoBuildItems is returned by Store for a scene with nothing to
// place on the plate.
var ErrNoBuildItems = errors.New("no build item found")

// errorLog accumulates the codec's error strings across one load or
// store call, mirroring soft errors to the structured log as they come
// in. Fatal errors abort the call; soft ones only land here.
type errorLog struct {
	errors []string
	log    *zap.Logger
}

func newErrorLog(log *zap.Logger) *errorLog {
	if log == nil {
		log = zap.NewNop()
	}
	return &errorLog{log: log}
}

func (l *errorLog) add(msg string) {
	l.errors = append(l.errors, msg)
	l.log.Debug(msg)
}

func (l *errorLog) addf(format string, args ...any) {
	l.add(fmt.Sprintf(format, args...))
}

// fail records msg and returns it as the fatal error for the call.
func (l *errorLog) fail(msg string) error {
	l.add(msg)
	return errors.New(msg)
}

func (l *errorLog) failf(format string, args ...any) error {
	return l.fail(fmt.Sprintf(format, args...))
}

func (l *errorLog) all() []string {
	return l.errors
}

func (l *errorLog) clear() {
	l.errors = nil
}
