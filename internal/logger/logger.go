package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger set up by InitLogger. Components take their
// logger as a dependency; Log only exists for the entry point.
var Log = zap.NewNop()

// New builds a zap logger for env. "production" gets JSON on stdout,
// everything else the colored development console. An unparsable level
// falls back to info.
func New(env, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.Config{
			Encoding:         "json",
			Level:            zap.NewAtomicLevelAt(lvl),
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "time",
				LevelKey:       "level",
				MessageKey:     "message",
				CallerKey:      "caller",
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeLevel:    zapcore.CapitalLevelEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
				EncodeDuration: zapcore.StringDurationEncoder,
			},
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg.Build()
}

// InitLogger replaces Log. It panics if zap cannot be built, which only
// happens with a broken output path.
func InitLogger(env, level string) *zap.Logger {
	l, err := New(env, level)
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = l
	Log.Info("Logger initialized", zap.String("env", env), zap.String("host", hostname()))
	return Log
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func hostname() string {
	host, _ := os.Hostname()
	return host
}
