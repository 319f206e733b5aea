// Package main provides the ChatGuard CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"chatguard/internal/captcha"
	"chatguard/internal/chat"
	"chatguard/internal/chat/telegram"
	"chatguard/internal/core"
	"chatguard/internal/flood"
	httpserver "chatguard/internal/http"
	"chatguard/internal/i18n"
	"chatguard/internal/store"
)

const (
	envPrefix         = "CHATGUARD"
	defaultServerHost = "0.0.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatguard",
	Short: "ChatGuard - Telegram group moderation bot",
	Long: `ChatGuard keeps Telegram groups clean: it mutes flooders, asks newcomers to prove
they are human, and deletes messages with links or stopwords.`,
	RunE: runChatGuard,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (json, text)")
	flags.String("telegram-bot-token", "", "Telegram bot token")
	flags.Int64("log-chat-id", 0, "Telegram chat that receives a copy of the logs (0 disables)")
	flags.String("log-chat-level", defaults.Telegram.LogChatLevel, "Minimum level mirrored to the log chat")
	flags.Duration("admin-cache-ttl", defaults.Telegram.AdminCacheTTL, "How long the bot's own admin status is cached")
	flags.Int("flood-max-messages", defaults.Moderation.FloodMaxMessages, "Messages allowed per user within the flood window")
	flags.Duration("flood-window", defaults.Moderation.FloodWindow, "Flood detection window")
	flags.Duration("flood-mute-duration", defaults.Moderation.FloodMuteDuration, "How long flooders are muted")
	flags.Duration("captcha-timeout", defaults.Moderation.CaptchaTimeout, "Time newcomers have to press the captcha button")
	flags.Duration("captcha-mute-buffer", defaults.Moderation.CaptchaMuteBuffer, "Extra restriction time past the captcha deadline")
	flags.Bool("delete-service-messages", defaults.Moderation.DeleteServiceMessages, "Delete join and leave service messages")
	flags.String("store-backend", defaults.Store.Backend, "Settings store (sqlite, redis, memory)")
	flags.String("sqlite-path", defaults.Store.SQLitePath, "SQLite database path")
	flags.String("redis-url", "", "Redis URL, e.g. redis://localhost:6379/0")
	flags.Bool("server-enabled", defaults.Server.Enabled, "Serve health checks and metrics")
	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Bot language (%s)", supportedLangs))
	flags.Int("dedup-capacity", defaults.App.DedupCapacity, "Number of recent update IDs remembered to drop replays")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureTelegram(cfg)
	configureModeration(cfg)
	configureStore(cfg)
	configureServer(cfg)
	configureApp(cfg)

	return cfg
}

func configureTelegram(cfg *core.Config) {
	cfg.Telegram.BotToken = viper.GetString("telegram-bot-token")
	cfg.Telegram.LogChatID = viper.GetInt64("log-chat-id")
	cfg.Telegram.LogChatLevel = viper.GetString("log-chat-level")
	cfg.Telegram.AdminCacheTTL = viper.GetDuration("admin-cache-ttl")
}

func configureModeration(cfg *core.Config) {
	cfg.Moderation.FloodMaxMessages = viper.GetInt("flood-max-messages")
	cfg.Moderation.FloodWindow = viper.GetDuration("flood-window")
	cfg.Moderation.FloodMuteDuration = viper.GetDuration("flood-mute-duration")
	cfg.Moderation.CaptchaTimeout = viper.GetDuration("captcha-timeout")
	cfg.Moderation.CaptchaMuteBuffer = viper.GetDuration("captcha-mute-buffer")
	cfg.Moderation.DeleteServiceMessages = viper.GetBool("delete-service-messages")
}

func configureStore(cfg *core.Config) {
	cfg.Store.Backend = strings.ToLower(viper.GetString("store-backend"))
	cfg.Store.SQLitePath = viper.GetString("sqlite-path")
	cfg.Store.RedisURL = viper.GetString("redis-url")
}

func configureServer(cfg *core.Config) {
	cfg.Server.Enabled = viper.GetBool("server-enabled")
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	cfg.App.DedupCapacity = viper.GetInt("dedup-capacity")
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func buildLogger(level, format string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	if strings.ToLower(format) == "text" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runChatGuard(cmd *cobra.Command, _ []string) error {
	// Handle generate-env-example flag
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting ChatGuard",
		zap.String("store_backend", config.Store.Backend),
		zap.String("language", config.App.Language),
		zap.Int("flood_max_messages", config.Moderation.FloodMaxMessages),
		zap.Duration("flood_window", config.Moderation.FloodWindow),
		zap.Duration("captcha_timeout", config.Moderation.CaptchaTimeout))

	if err := validateConfig(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	services, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, services)
}

type services struct {
	frontend   *telegram.Frontend
	mirror     *telegram.LogMirror
	httpServer *httpserver.Server
	store      core.SettingsStore
	floodgate  *flood.Floodgate
	captchas   *captcha.Registry
	pipeline   *core.Pipeline
	commands   *core.Commands
}

func initializeServices(ctx context.Context) (*services, error) {
	frontend := telegram.NewFrontend(&telegram.Config{
		BotToken:       config.Telegram.BotToken,
		CallbackPrefix: core.CaptchaCallbackPrefix,
		AdminCacheTTL:  config.Telegram.AdminCacheTTL,
		AdminCacheSize: config.Telegram.AdminCacheSize,
		DedupCapacity:  config.App.DedupCapacity,
	}, logger.Named("telegram"))
	if err := frontend.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start telegram frontend: %w", err)
	}

	// Every component logger below is derived after the mirror joins the core
	localizer := i18n.NewLocalizer(config.App.Language)
	mirror := setupLogMirror(ctx, frontend, localizer)
	frontend.SetLogger(logger.Named("telegram"))

	settingsStore, err := openSettingsStore(ctx)
	if err != nil {
		return nil, err
	}

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"))
	floodgate := flood.New(config.Moderation.FloodMaxMessages, config.Moderation.FloodWindow)
	floodStats := floodgate.GetStats()
	logger.Info("Antiflood configured",
		zap.Int("max_messages", floodStats.MaxMessages),
		zap.Int("window_seconds", floodStats.WindowSeconds))
	captchas := captcha.NewRegistry(config.Moderation.CaptchaTimeout, logger.Named("captcha"))

	pipeline := core.NewPipeline(&config.Moderation, frontend, settingsStore, floodgate, captchas,
		localizer, httpServer, logger.Named("pipeline"))
	commands := core.NewCommands(frontend, settingsStore, localizer, httpServer,
		logger.Named("commands"), frontend.Username())

	return &services{
		frontend:   frontend,
		mirror:     mirror,
		httpServer: httpServer,
		store:      settingsStore,
		floodgate:  floodgate,
		captchas:   captchas,
		pipeline:   pipeline,
		commands:   commands,
	}, nil
}

func openSettingsStore(ctx context.Context) (core.SettingsStore, error) {
	storeLogger := logger.Named("store")

	switch config.Store.Backend {
	case core.StoreBackendSQLite:
		sqliteStore, err := store.OpenSQLite(ctx, config.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		storeLogger.Info("Using SQLite settings store", zap.String("path", config.Store.SQLitePath))
		return sqliteStore, nil
	case core.StoreBackendRedis:
		redisStore, err := store.NewRedisStore(ctx, config.Store.RedisURL, store.DefaultRedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis store: %w", err)
		}
		storeLogger.Info("Using Redis settings store")
		return redisStore, nil
	case core.StoreBackendMemory:
		storeLogger.Warn("Using in-memory settings store, settings are lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}

// setupLogMirror tees the global logger into the log chat when one is configured
func setupLogMirror(ctx context.Context, frontend *telegram.Frontend, localizer *i18n.Localizer) *telegram.LogMirror {
	if config.Telegram.LogChatID == 0 {
		logger.Info("Log mirroring disabled, set --log-chat-id to receive logs in Telegram")
		return nil
	}

	mirror := telegram.NewLogMirror(frontend, config.Telegram.LogChatID,
		parseLevel(config.Telegram.LogChatLevel), core.DefaultLogMirrorMaxLength)

	if err := mirror.Announce(ctx, localizer.T("bot.log_connected")); err != nil {
		logger.Warn("Could not reach the log chat, make sure the bot can write there",
			zap.Int64("chat_id", config.Telegram.LogChatID),
			zap.Error(err))
	}

	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, mirror.Core())
	}))
	logger.Info("Log mirroring enabled", zap.Int64("chat_id", config.Telegram.LogChatID))
	return mirror
}

// dispatch hands an event to the pipeline and passes unconsumed text on to commands
func (s *services) dispatch(ctx context.Context, ev *chat.Event) {
	if s.pipeline.HandleEvent(ctx, ev) {
		return
	}
	if ev.Kind == chat.EventTextMessage {
		s.commands.Handle(ctx, ev)
	}
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	if config.Server.Enabled {
		g.Go(func() error {
			return svcs.httpServer.Start(gCtx)
		})
	}

	if svcs.mirror != nil {
		g.Go(func() error {
			svcs.mirror.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		svcs.httpServer.SetReady(true)
		defer svcs.httpServer.SetReady(false)
		return svcs.frontend.Listen(gCtx, svcs.dispatch)
	})

	logger.Info("ChatGuard started successfully",
		zap.String("bot", svcs.frontend.Username()),
		zap.Bool("http_enabled", config.Server.Enabled),
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	err := g.Wait()
	shutdown(svcs)

	if err != nil {
		logger.Error("ChatGuard stopped with error", zap.Error(err))
		return err
	}

	logger.Info("ChatGuard stopped gracefully")
	return nil
}

func shutdown(svcs *services) {
	svcs.captchas.Stop()
	svcs.floodgate.Stop()
	if err := svcs.store.Close(); err != nil {
		logger.Debug("Failed to close settings store", zap.Error(err))
	}
	_ = logger.Sync()
}

func validateConfig() error {
	if err := validateTelegramConfig(); err != nil {
		return err
	}

	if err := validateModerationConfig(); err != nil {
		return err
	}

	if err := validateStoreConfig(); err != nil {
		return err
	}

	if !slices.Contains(i18n.GetSupportedLanguages(), config.App.Language) {
		return fmt.Errorf("unsupported language %q (supported: %s)",
			config.App.Language, strings.Join(i18n.GetSupportedLanguages(), ", "))
	}

	return nil
}

func validateTelegramConfig() error {
	if config.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required (--telegram-bot-token or CHATGUARD_TELEGRAM_BOT_TOKEN)")
	}
	if config.Telegram.AdminCacheTTL <= 0 {
		return fmt.Errorf("admin-cache-ttl must be positive, got %s", config.Telegram.AdminCacheTTL)
	}
	if config.Telegram.AdminCacheSize < 1 {
		return fmt.Errorf("admin cache size must be at least 1, got %d", config.Telegram.AdminCacheSize)
	}
	return nil
}

func validateModerationConfig() error {
	m := config.Moderation
	switch {
	case m.FloodMaxMessages < 1:
		return fmt.Errorf("flood-max-messages must be at least 1, got %d", m.FloodMaxMessages)
	case m.FloodWindow <= 0:
		return fmt.Errorf("flood-window must be positive, got %s", m.FloodWindow)
	case m.FloodMuteDuration <= 0:
		return fmt.Errorf("flood-mute-duration must be positive, got %s", m.FloodMuteDuration)
	case m.CaptchaTimeout <= 0:
		return fmt.Errorf("captcha-timeout must be positive, got %s", m.CaptchaTimeout)
	case m.CaptchaMuteBuffer < 0:
		return fmt.Errorf("captcha-mute-buffer must not be negative, got %s", m.CaptchaMuteBuffer)
	}
	return nil
}

func validateStoreConfig() error {
	switch config.Store.Backend {
	case core.StoreBackendSQLite:
		if strings.TrimSpace(config.Store.SQLitePath) == "" {
			return errors.New("sqlite-path is required for the sqlite store backend")
		}
	case core.StoreBackendRedis:
		if config.Store.RedisURL == "" {
			return errors.New("redis-url is required for the redis store backend")
		}
	case core.StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q (supported: sqlite, redis, memory)", config.Store.Backend)
	}
	return nil
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

type envSection struct {
	title string
	flags []string
}

var envSections = []envSection{
	{"Telegram Configuration", []string{"telegram-bot-token", "log-chat-id", "log-chat-level", "admin-cache-ttl"}},
	{"Antiflood", []string{"flood-max-messages", "flood-window", "flood-mute-duration"}},
	{"Newcomer Captcha", []string{"captcha-timeout", "captcha-mute-buffer", "delete-service-messages"}},
	{"Settings Store", []string{"store-backend", "sqlite-path", "redis-url"}},
	{"Localization", []string{"language"}},
	{"HTTP Server Configuration", []string{"server-enabled", "server-host", "server-port"}},
	{"Logging Configuration", []string{"log-level", "log-format"}},
	{"Advanced", []string{"dedup-capacity"}},
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	// Header
	content.WriteString("# =============================================================================\n")
	content.WriteString("# ChatGuard Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: CHATGUARD_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n")
	content.WriteString("# =============================================================================\n\n")

	for _, section := range envSections {
		generateSection(&content, cmd, section)
	}
	generateQuickSetupGuide(&content)

	return content.String()
}

func generateSection(content *strings.Builder, cmd *cobra.Command, section envSection) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# CLI: --%s\n", strings.Join(section.flags, ", --"))

	for _, name := range section.flags {
		value := getDefaultValueString(cmd, name)
		if name == "telegram-bot-token" {
			value = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"
		}
		usage := ""
		if f := cmd.PersistentFlags().Lookup(name); f != nil {
			usage = f.Usage
		}
		fmt.Fprintf(content, "%s=%s  # %s (default: %s)\n",
			flagToEnvVar(name), value, usage, getDefaultValueString(cmd, name))
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

func generateQuickSetupGuide(content *strings.Builder) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# QUICK SETUP GUIDE\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# 1. Message @BotFather on Telegram, create a bot with /newbot and copy the\n")
	content.WriteString("#    token to CHATGUARD_TELEGRAM_BOT_TOKEN above\n")
	content.WriteString("# 2. Add the bot to your group as an administrator with the rights to delete\n")
	content.WriteString("#    messages and ban users\n")
	content.WriteString("# 3. Optional: write /start to the bot in private and set CHATGUARD_LOG_CHAT_ID\n")
	content.WriteString("#    to your user ID to receive its logs\n")
	content.WriteString("# 4. Run: go run ./cmd/chatguard --log-level=debug\n")
	content.WriteString("#\n")
	content.WriteString("# Issue: \"Bot doesn't react to new members\"\n")
	content.WriteString("# - Membership updates are only delivered to administrators, check the bot's rights\n")
	content.WriteString("# - Check the bot token with: curl https://api.telegram.org/bot<TOKEN>/getMe\n")
}
