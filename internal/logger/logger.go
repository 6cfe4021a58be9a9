package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoding, level and sink of the process logger.
type Options struct {
	JSON  bool
	Debug bool
	// Stderr keeps stdout free for tables and the interactive console.
	Stderr bool
}

// New builds the process logger.
func New(opts Options) (*zap.Logger, error) {
	return opts.config().Build()
}

func (o Options) config() zap.Config {
	level := zapcore.InfoLevel
	if o.Debug {
		level = zapcore.DebugLevel
	}

	encoding := "console"
	if o.JSON {
		encoding = "json"
	}

	output := "stdout"
	if o.Stderr {
		output = "stderr"
	}

	return zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "step",
			LevelKey:     "level",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			TimeKey:      "time",
			EncodeTime:   zapcore.RFC3339TimeEncoder,
			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
			// durations show up in summaries and retry logs
			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}
