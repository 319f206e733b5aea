package core

import (
	"time"

	"chatguard/internal/i18n"
)

// Default configuration values
const (
	DefaultFloodMaxMessages   = 5
	DefaultFloodWindow        = 10 * time.Second
	DefaultFloodMuteDuration  = 10 * time.Minute
	DefaultCaptchaTimeout     = 60 * time.Second
	DefaultCaptchaMuteBuffer  = 60 * time.Second
	DefaultCommandMute        = 10 * time.Minute
	DefaultAdminCacheTTL      = 30 * time.Second
	DefaultAdminCacheSize     = 1024
	DefaultDedupCapacity      = 10000
	DefaultServerPort         = 8080
	DefaultServerTimeout      = 10 * time.Second
	DefaultStoreBackend       = StoreBackendSQLite
	DefaultSQLitePath         = "./data/chatguard.db"
	DefaultLogMirrorLevel     = "info"
	DefaultLogMirrorMaxLength = 4000
)

// Supported settings store backends
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type Config struct {
	Telegram   TelegramConfig
	Moderation ModerationConfig
	Store      StoreConfig
	Server     ServerConfig
	Log        LogConfig
	App        AppConfig
}

type TelegramConfig struct {
	BotToken       string
	LogChatID      int64  // Chat that receives mirrored log entries, 0 disables mirroring
	LogChatLevel   string // Minimum level mirrored to LogChatID
	AdminCacheTTL  time.Duration
	AdminCacheSize int
}

type ModerationConfig struct {
	FloodMaxMessages      int
	FloodWindow           time.Duration
	FloodMuteDuration     time.Duration
	CaptchaTimeout        time.Duration
	CaptchaMuteBuffer     time.Duration // Extra restriction time past the captcha deadline
	DeleteServiceMessages bool
}

type StoreConfig struct {
	Backend    string
	SQLitePath string
	RedisURL   string
}

type ServerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language      string
	DedupCapacity int
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			LogChatLevel:   DefaultLogMirrorLevel,
			AdminCacheTTL:  DefaultAdminCacheTTL,
			AdminCacheSize: DefaultAdminCacheSize,
		},
		Moderation: ModerationConfig{
			FloodMaxMessages:      DefaultFloodMaxMessages,
			FloodWindow:           DefaultFloodWindow,
			FloodMuteDuration:     DefaultFloodMuteDuration,
			CaptchaTimeout:        DefaultCaptchaTimeout,
			CaptchaMuteBuffer:     DefaultCaptchaMuteBuffer,
			DeleteServiceMessages: true,
		},
		Store: StoreConfig{
			Backend:    DefaultStoreBackend,
			SQLitePath: DefaultSQLitePath,
		},
		Server: ServerConfig{
			Enabled:      true,
			Host:         "0.0.0.0",
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerTimeout,
			WriteTimeout: DefaultServerTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:      i18n.DefaultLanguage,
			DedupCapacity: DefaultDedupCapacity,
		},
	}
}
