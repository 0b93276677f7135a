package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"carebot/internal/structures"
)

type TypeEnum string

const (
	TypeApp   TypeEnum = "app"
	TypeBot   TypeEnum = "bot"
	TypeGate  TypeEnum = "gate"
	TypeStore TypeEnum = "store"
	TypeGet   TypeEnum = "get"
	TypePost  TypeEnum = "post"
)

func GetLogTypeByRequestType(method string) TypeEnum {
	if method == "POST" {
		return TypePost
	}
	return TypeGet
}

type Logger interface {
	Errorf(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Debugf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Fatalf(t TypeEnum, format string, args ...interface{})
	Close()
}

type LogProvider struct {
	appLog    zerolog.Logger
	accessLog zerolog.Logger
	files     []*os.File
}

// loggerFor maps log channels to files: HTTP traffic goes to access.log,
// everything else to app.log.
func (l *LogProvider) loggerFor(t TypeEnum) *zerolog.Logger {
	if t == TypeGet || t == TypePost {
		return &l.accessLog
	}
	return &l.appLog
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", conf.Logger.Level, err)
	}

	mode := os.FileMode(conf.Logger.Mode)
	provider := &LogProvider{}

	open := func(name string) (*os.File, error) {
		path := filepath.Join(conf.Logger.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, mode)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
		}
		provider.files = append(provider.files, file)
		return file, nil
	}

	appFile, err := open("app.log")
	if err != nil {
		return nil, err
	}
	accessFile, err := open("access.log")
	if err != nil {
		provider.Close()
		return nil, err
	}

	provider.appLog = zerolog.New(appFile).Level(level).With().Timestamp().Logger()
	provider.accessLog = zerolog.New(accessFile).Level(level).With().Timestamp().Logger()

	return provider, nil
}

func (l *LogProvider) Errorf(t TypeEnum, format string, args ...interface{}) {
	l.loggerFor(t).Error().Str("type", string(t)).Msgf(format, args...)
}

func (l *LogProvider) Warnf(t TypeEnum, format string, args ...interface{}) {
	l.loggerFor(t).Warn().Str("type", string(t)).Msgf(format, args...)
}

func (l *LogProvider) Debugf(t TypeEnum, format string, args ...interface{}) {
	l.loggerFor(t).Debug().Str("type", string(t)).Msgf(format, args...)
}

func (l *LogProvider) Infof(t TypeEnum, format string, args ...interface{}) {
	l.loggerFor(t).Info().Str("type", string(t)).Msgf(format, args...)
}

func (l *LogProvider) Fatalf(t TypeEnum, format string, args ...interface{}) {
	l.loggerFor(t).Fatal().Str("type", string(t)).Msgf(format, args...)
}

func (l *LogProvider) Close() {
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = nil
}
