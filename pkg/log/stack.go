package log

import (
	"github.com/cockroachdb/errors"
)

// MarshalStack renders the stack trace attached by cockroachdb/errors.
// It is installed as zerolog.ErrorStackMarshaler by SetupLogger.
func MarshalStack(err error) interface{} {
	if st := extractStacktrace(err); st != "" {
		return st
	}
	return nil
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
