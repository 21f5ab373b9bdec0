package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yolo-japan/lineassist/internal/api"
	"github.com/yolo-japan/lineassist/internal/bot"
	"github.com/yolo-japan/lineassist/internal/genai"
	"github.com/yolo-japan/lineassist/internal/line"
	"github.com/yolo-japan/lineassist/internal/lockfile"
	"github.com/yolo-japan/lineassist/internal/scheduler"
	"github.com/yolo-japan/lineassist/internal/store"
	"github.com/yolo-japan/lineassist/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for lineassist state data
	DefaultStateDir = "/var/lib/lineassist"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "lineassist.db"
	// DefaultCleanupSchedule runs the stale state janitor nightly
	DefaultCleanupSchedule = "0 4 * * *"
	// DefaultStateTTL is how long an untouched conversation state survives
	DefaultStateTTL = 24 * time.Hour
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping lineassist with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)

	// A shared SQLite file must not be touched by two instances at once.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open conversation store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	messenger, err := line.NewClient(buildLineOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create LINE client", "error", err)
		os.Exit(1)
	}

	botOpts := []bot.Option{
		bot.WithStore(st),
		bot.WithMessenger(messenger),
		bot.WithRichMenus(config.RichMenus),
	}

	// Open chat degrades to a canned fallback when no assistant is wired, so a
	// missing API key is not fatal.
	assistant, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("GenAI assistant disabled", "error", err)
	} else {
		botOpts = append(botOpts, bot.WithAssistant(assistant))
	}

	b, err := bot.New(botOpts...)
	if err != nil {
		slog.Error("Failed to create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(config.CleanupSchedule, func() {
		deleted, err := st.DeleteStaleConversationStates(DefaultStateTTL)
		if err != nil {
			slog.Error("Stale state cleanup failed", "error", err)
			return
		}
		slog.Info("Stale state cleanup finished", "deleted", deleted)
	}); err != nil {
		slog.Error("Failed to schedule stale state cleanup", "error", err, "schedule", config.CleanupSchedule)
		os.Exit(1)
	}

	apiOpts := append(buildAPIOptions(flags), api.WithBot(b), api.WithPusher(messenger))
	server, err := api.NewServer(apiOpts...)
	if err != nil {
		slog.Error("Failed to create API server", "error", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		slog.Error("lineassist failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("lineassist exited successfully")
}

// Config holds environment configuration
type Config struct {
	ChannelToken    string
	ChannelSecret   string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	AppBaseURL      string
	CleanupSchedule string
	RichMenus       bot.RichMenus
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	openaiKey  *string
	apiAddr    *string
	appBaseURL *string
}

// initializeLogger sets up structured logging. Debug is the default; set
// LINEASSIST_DEBUG=false to quiet it down to info.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("LINEASSIST_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		ChannelToken:    os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		ChannelSecret:   os.Getenv("LINE_CHANNEL_SECRET"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("LINEASSIST_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		AppBaseURL:      os.Getenv("APP_BASE_URL"),
		CleanupSchedule: os.Getenv("CLEANUP_SCHEDULE"),
		RichMenus:       loadRichMenuConfig(),
	}

	if config.CleanupSchedule == "" {
		config.CleanupSchedule = DefaultCleanupSchedule
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LINEASSIST_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("LINEASSIST_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LINE_CHANNEL_ACCESS_TOKEN_SET", config.ChannelToken != "",
		"LINE_CHANNEL_SECRET_SET", config.ChannelSecret != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LINEASSIST_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"APP_BASE_URL", config.AppBaseURL)

	return config
}

// loadRichMenuConfig reads the rich menu ids linked on follow and language
// change. Unset ids disable the corresponding switch.
func loadRichMenuConfig() bot.RichMenus {
	menus := bot.RichMenus{
		Init:   os.Getenv("RICH_MENU_ID_INIT"),
		ByLang: make(map[string]string),
	}
	for _, lang := range []string{"ja", "en", "ko", "zh", "vi"} {
		if id := os.Getenv("RICH_MENU_ID_" + strings.ToUpper(lang)); id != "" {
			menus.ByLang[lang] = id
		}
	}
	return menus
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for lineassist data (overrides $LINEASSIST_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		openaiKey:  flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		appBaseURL: flag.String("app-base-url", config.AppBaseURL, "public base URL of this service, target of delayed pushes (overrides $APP_BASE_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"appBaseURL", *flags.appBaseURL)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore opens the conversation store matching the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// buildLineOptions constructs LINE client configuration options
func buildLineOptions(flags Flags) []line.Option {
	var lineOpts []line.Option
	if *flags.appBaseURL != "" {
		lineOpts = append(lineOpts, line.WithAppBaseURL(*flags.appBaseURL))
	}
	return lineOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
