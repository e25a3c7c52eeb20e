package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/engblog/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFileMaxSizeMB = 50
	defaultLogFileName      = "engblog.log"
)

type LoggerSetupParams struct {
	// LogsPath is either a log file path or a directory, empty means STDOUT only
	LogsPath         string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	LogFileMaxSizeMB int
	LogFileBackups   int
	Environment      string
	Release          string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
}

// Setup configures the global logrus logger: level, format, output and, when enabled,
// the sentry hook for error level entries.
func Setup(params LoggerSetupParams) error {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))

	if params.SentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              params.SentryDSN,
			Environment:      params.Environment,
			Release:          params.Release,
			ServerName:       params.SentryServerName,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		logrus.AddHook(NewSentryHook([]logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		}))
		logrus.Infoln("sentry hook added")
	}

	out, err := output(params)
	if err != nil {
		return err
	}
	logrus.SetOutput(out)

	return nil
}

func output(params LoggerSetupParams) (io.Writer, error) {
	if params.LogsPath == "" {
		logrus.Println("writing logs only to STDOUT")
		return os.Stdout, nil
	}

	logFile, err := logFilePath(params.LogsPath)
	if err != nil {
		return nil, err
	}

	maxSize := params.LogFileMaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultLogFileMaxSizeMB
	}
	// rotated files are kept forever unless LogFileBackups is set
	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSize,
		MaxBackups: params.LogFileBackups,
		Compress:   true,
	}

	if params.LogToStdout {
		logrus.Printf("writing logs to [%s] and STDOUT", logFile)
		return pkg.NewCombinedWriter(os.Stdout, rotating), nil
	}
	logrus.Printf("writing logs to [%s]", logFile)
	return rotating, nil
}

// logFilePath resolves the configured logs path: an existing directory gets the default
// file name, anything else is a file and gets the .log suffix.
func logFilePath(logsPath string) (string, error) {
	isDir, err := pkg.PathExists(logsPath, true)
	if err == nil && isDir {
		return filepath.Join(logsPath, defaultLogFileName), nil
	}

	dir := filepath.Dir(logsPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir %s: %w", dir, err)
	}
	if !strings.HasSuffix(logsPath, ".log") {
		logsPath += ".log"
	}
	return logsPath, nil
}

// GetLevel parses the configured level, unknown values fall back to info.
func GetLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
