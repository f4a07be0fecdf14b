// Package logger builds the process-wide zap logger.
package logger

import (
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// New returns a JSON production logger when prod is true and a colored
// console logger otherwise.  level is parsed with zapcore ("debug",
// "info", ...); an unparsable level falls back to info.
func New(prod bool, level string) (*zap.Logger, error) {
    var cfg zap.Config
    if prod {
        cfg = zap.NewProductionConfig()
    } else {
        cfg = zap.NewDevelopmentConfig()
        cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
    }

    lvl := zapcore.InfoLevel
    if level != "" {
        if err := lvl.UnmarshalText([]byte(level)); err != nil {
            lvl = zapcore.InfoLevel
        }
    }
    cfg.Level = zap.NewAtomicLevelAt(lvl)
    return cfg.Build()
}
