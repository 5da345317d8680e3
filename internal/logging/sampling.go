package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error. Errors and above bypass the
// sampler so that failures are never dropped.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	low := &levelBand{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	high := &levelBand{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	return zapcore.NewTee(
		zapcore.NewSamplerWithOptions(low, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter),
		high,
	)
}

// levelBand passes only entries with min <= level <= max.
type levelBand struct {
	zapcore.Core
	min, max zapcore.Level
}

func (b *levelBand) Enabled(lvl zapcore.Level) bool {
	return lvl >= b.min && lvl <= b.max && b.Core.Enabled(lvl)
}

func (b *levelBand) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < b.min || ent.Level > b.max {
		return ce
	}
	return b.Core.Check(ent, ce)
}

func (b *levelBand) With(fields []zapcore.Field) zapcore.Core {
	return &levelBand{Core: b.Core.With(fields), min: b.min, max: b.max}
}
