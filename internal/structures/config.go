package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type TelegramConfig struct {
	Token       string        `yaml:"token" validate:"required"`
	PollTimeout time.Duration `yaml:"pollTimeout" validate:"required|min:1"`
	APIBaseURL  string        `yaml:"apiBaseUrl"`
}

type QuestionnaireConfig struct {
	File string `yaml:"file" validate:"required|unixPath"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required|in:sqlite,postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type ClassifierConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	FailMode string        `yaml:"failMode" validate:"in:open,closed"`
}

type SpecialistConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
	QAFile         string `yaml:"qaFile"`
	TopK           int    `yaml:"topK"`
}

type ExportConfig struct {
	Dir              string        `yaml:"dir" validate:"required|unixPath"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval" validate:"required|min:1"`
	TTL              time.Duration `yaml:"ttl"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	TTL     int  `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName       string
	Debug         bool
	Path          string
	Telegram      TelegramConfig      `yaml:"telegram"`
	Questionnaire QuestionnaireConfig `yaml:"questionnaire"`
	Database      DatabaseConfig      `yaml:"database"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Specialist    SpecialistConfig    `yaml:"specialist"`
	Export        ExportConfig        `yaml:"export"`
	WebServer     Server              `yaml:"webServer"`
	Logger        LoggerConfig        `yaml:"logger"`
	Cache         CacheConfig         `yaml:"cache"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}
