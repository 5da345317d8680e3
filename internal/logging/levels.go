package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. Per-candidate decisions of a cleaning pass
// are logged at this level.
const TraceLevel = zapcore.Level(-2)

// ParseLevel parses a level name. It accepts "trace" in addition to the
// zap level names, case-insensitively.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "trace" {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(name)
}
