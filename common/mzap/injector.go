package mzap

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opendogma/dogma/common/mlog"
)

// InitializeLoggerWithError builds the process-wide logger: production JSON
// config when ENV_NAME=production, colorized development config otherwise,
// with LOG_LEVEL overriding the level either way.
//
//nolint:ireturn
func InitializeLoggerWithError() (mlog.Logger, error) {
	var zapCfg zap.Config

	if os.Getenv("ENV_NAME") == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if val, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var lvl zapcore.Level
		if err := lvl.Set(val); err != nil {
			lvl = zapcore.InfoLevel
		}

		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapCfg.DisableStacktrace = true

	logger, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}

	sugar := logger.Sugar()
	sugar.Infof("log level is (%v)", zapCfg.Level)

	return &ZapLogger{Logger: sugar}, nil
}
