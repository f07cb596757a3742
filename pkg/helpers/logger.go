package helpers

import (
	"context"
	"fmt"
	"io"
	"path"
	"runtime"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/jakehl/goid"
	"github.com/sirupsen/logrus"
	"github.com/trustedge/trustedge"
	"github.com/trustedge/trustedge/pkg/config"
)

var LogFormatter = &formatter.Formatter{
	TimestampFormat: "2006-01-02 15:04:05",
	HideKeys:        true,
	FieldsOrder:     []string{"src", "auth-type", "auth-id", "req-id", "service", "subsystem"},
	CallerFirst:     true,
	CustomCallerFormatter: func(f *runtime.Frame) string {
		filename := path.Base(f.File)
		return fmt.Sprintf(" [%s %s():%d]", filename, f.Function, f.Line)
	},
}

func SetupLogger(currentLevel config.LogLevel, serviceID string, subsystem string) *logrus.Entry {
	var err error
	logger := logrus.New()
	logger.SetFormatter(LogFormatter)
	lSubsystem := logger.WithFields(logrus.Fields{
		"service":   serviceID,
		"subsystem": subsystem,
	})

	if currentLevel == config.None {
		lSubsystem.Infof("subsystem logging will be disabled")
		lSubsystem.Logger.SetOutput(io.Discard)
	} else {
		level := logrus.GetLevel()

		if currentLevel != "" {
			level, err = logrus.ParseLevel(string(currentLevel))
			if err != nil {
				logrus.Warnf("'%s' invalid '%s' log level. Defaulting to global log level", subsystem, currentLevel)
			}
		} else {
			logrus.Warnf("'%s' log level not set. Defaulting to global log level", subsystem)
		}

		lSubsystem.Logger.SetLevel(level)
	}

	return lSubsystem
}

func ConfigureLogger(ctx context.Context, logger *logrus.Entry) *logrus.Entry {
	logger = configureLoggerWithSource(ctx, logger)
	logger = configureLoggerWithRequestID(ctx, logger)
	return logger
}

func configureLoggerWithSource(ctx context.Context, logger *logrus.Entry) *logrus.Entry {
	source := ""
	authType := ""
	authID := ""

	if src, ok := ctx.Value(trustedge.TrustedgeContextKeySource).(string); ok {
		source = src
	}

	if id, ok := ctx.Value(trustedge.TrustedgeContextKeyAuthID).(string); ok {
		authID = id
	}

	if mode, ok := ctx.Value(trustedge.TrustedgeContextKeyAuthType).(string); ok {
		authType = mode
	}

	logger = logger.WithField("src", source)
	logger = logger.WithField("auth-type", authType)
	logger = logger.WithField("auth-id", authID)

	return logger
}

func configureLoggerWithRequestID(ctx context.Context, logger *logrus.Entry) *logrus.Entry {
	if logger.Logger.Level < logrus.DebugLevel {
		return logger
	}

	if reqID, ok := ctx.Value(trustedge.TrustedgeContextKeyRequestID).(string); ok {
		return logger.WithField("req-id", reqID)
	}

	return logger.WithField("req-id", fmt.Sprintf("unset.%s", goid.NewV4UUID()))
}

func InitContext() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, trustedge.TrustedgeContextKeyRequestID, fmt.Sprintf("internal.%s", goid.NewV4UUID()))
	return ctx
}
