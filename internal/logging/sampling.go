package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples each level listed in cfg.Levels with its own rate.
// Levels without an entry, and everything at Error or above, pass through
// unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	sampled := make(map[zapcore.Level]bool, len(cfg.Levels))
	for level, rate := range cfg.Levels {
		if level >= zapcore.ErrorLevel {
			continue
		}
		sampled[level] = true
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&levelFilterCore{Core: core, min: level, max: level},
			cfg.Tick,
			rate.Initial,
			rate.Thereafter,
		))
	}
	cores = append(cores, &excludeLevelsCore{Core: core, excluded: sampled})

	return zapcore.NewTee(cores...)
}

// levelFilterCore passes entries in [min, max].
type levelFilterCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}

// excludeLevelsCore passes every entry whose level is not sampled elsewhere.
type excludeLevelsCore struct {
	zapcore.Core
	excluded map[zapcore.Level]bool
}

func (c *excludeLevelsCore) Enabled(lvl zapcore.Level) bool {
	return !c.excluded[lvl] && c.Core.Enabled(lvl)
}

func (c *excludeLevelsCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *excludeLevelsCore) With(fields []zapcore.Field) zapcore.Core {
	return &excludeLevelsCore{Core: c.Core.With(fields), excluded: c.excluded}
}
