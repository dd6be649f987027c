package cinema

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

const (
	BuildTypeNone    = ""
	BuildTypeDev     = "dev"
	BuildTypeRelease = "release"

	logDirectory = "logs"
	logFilename  = "cinema-latest-run.log"

	logTimestampFormat = "2006-01-02 15:04:05.000"

	// wide enough for "cinema.session.surfaces" style names
	logNameWidth = 27
)

// NewLogger builds the application logger. Release builds write the latest
// run to the log directory, at info level unless verbose is set. Every other
// build logs coloured debug output to stderr.
func NewLogger(buildType string, verbose bool) (*zap.SugaredLogger, error) {
	config, err := loggerConfig(buildType, verbose)
	if err != nil {
		return nil, err
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}

func loggerConfig(buildType string, verbose bool) (zap.Config, error) {
	var config zap.Config

	switch buildType {
	case BuildTypeRelease:
		if err := util.EnsureDirExists(logDirectory); err != nil {
			return config, fmt.Errorf("prepare log directory: %w", err)
		}

		config = zap.NewProductionConfig()
		config.Encoding = "console"
		config.OutputPaths = []string{filepath.Join(logDirectory, logFilename)}
		if verbose {
			config.Level.SetLevel(zapcore.DebugLevel)
		}
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.EncodeCaller = nil
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logTimestampFormat)
	config.EncoderConfig.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("%-*s", logNameWidth, name))
	}

	return config, nil
}
