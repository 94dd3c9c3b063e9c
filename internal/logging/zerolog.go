// Zerolog-backed Logger, grounded on joeycumines-go-utilpkg/izerolog's
// dependency on github.com/rs/zerolog for exactly this purpose: a real
// structured-logging backend behind the package's own Logger interface.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Zerolog adapts a zerolog.Logger to the Logger interface.
type Zerolog struct {
	log zerolog.Logger
}

// NewZerolog builds a Zerolog logger writing to os.Stderr.
func NewZerolog() *Zerolog {
	return &Zerolog{log: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

// WrapZerolog adapts an existing zerolog.Logger instance.
func WrapZerolog(l zerolog.Logger) *Zerolog {
	return &Zerolog{log: l}
}

func (z *Zerolog) Debugf(format string, args ...any) {
	z.log.Debug().Msgf(format, args...)
}

func (z *Zerolog) Warnf(format string, args ...any) {
	z.log.Warn().Msgf(format, args...)
}

func (z *Zerolog) Errorf(format string, args ...any) {
	z.log.Error().Msgf(format, args...)
}
