package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"carebot/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("telegram.token", "CAREBOT_TELEGRAM_TOKEN")
	viper.BindEnv("database.driver", "CAREBOT_DB_DRIVER")
	viper.BindEnv("database.dsn", "CAREBOT_DB_DSN", "DATABASE_URL")
	viper.BindEnv("classifier.enabled", "CAREBOT_CLASSIFIER_ENABLED")
	viper.BindEnv("classifier.failMode", "CAREBOT_CLASSIFIER_FAIL_MODE")
	viper.BindEnv("logger.level", "CAREBOT_LOG_LEVEL")
	viper.BindEnv("cache.enabled", "CAREBOT_CACHE_ENABLED")
	viper.BindEnv("cache.size", "CAREBOT_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	applyDefaults(&conf)

	conf.AppName = "CareBotConsultationDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

func applyDefaults(conf *structures.Config) {
	if conf.Classifier.Model == "" {
		conf.Classifier.Model = "gpt-4o-mini"
	}
	if conf.Classifier.Timeout <= 0 {
		conf.Classifier.Timeout = 8
	}
	if conf.Classifier.FailMode == "" {
		conf.Classifier.FailMode = "open"
	}
	if conf.Specialist.Model == "" {
		conf.Specialist.Model = conf.Classifier.Model
	}
	if conf.Specialist.EmbeddingModel == "" {
		conf.Specialist.EmbeddingModel = "text-embedding-3-small"
	}
	if conf.Specialist.TopK <= 0 {
		conf.Specialist.TopK = 5
	}
	if conf.Telegram.APIBaseURL == "" {
		conf.Telegram.APIBaseURL = "https://api.telegram.org"
	}
}
