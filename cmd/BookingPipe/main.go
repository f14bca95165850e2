package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ostlive/bookingpipe/internal/api"
	"github.com/ostlive/bookingpipe/internal/commerce"
	"github.com/ostlive/bookingpipe/internal/console"
	"github.com/ostlive/bookingpipe/internal/extract"
	"github.com/ostlive/bookingpipe/internal/flow"
	"github.com/ostlive/bookingpipe/internal/genai"
	"github.com/ostlive/bookingpipe/internal/lockfile"
	"github.com/ostlive/bookingpipe/internal/notify"
	"github.com/ostlive/bookingpipe/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for BookingPipe state data
	DefaultStateDir = "/var/lib/bookingpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "bookingpipe.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping BookingPipe with configured modules")
	engine, err := buildEngine(config, flags)
	if err != nil {
		slog.Error("BookingPipe failed to initialize", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *flags.consoleMode {
		if err := runConsole(ctx, engine, flags); err != nil {
			slog.Error("BookingPipe console failed", "error", err)
			os.Exit(1)
		}
	} else {
		if err := runServer(ctx, engine, flags); err != nil {
			slog.Error("BookingPipe failed to run", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("BookingPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN    string
	StateDir       string
	OpenAIKey      string
	APIAddr        string
	PaymentPageURL string
	BlvdClientURL  string
	BlvdAdminURL   string
	BlvdAPIKey     string
	BlvdBusinessID string
	BlvdAPISecret  string
	SMSReceipts    bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	apiAddr        *string
	paymentPageURL *string
	consoleMode    *bool
	consoleQR      *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		StateDir:       os.Getenv("BOOKINGPIPE_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("API_ADDR"),
		PaymentPageURL: os.Getenv("PAYMENT_PAGE_URL"),
		BlvdClientURL:  os.Getenv("URL_CLIENT"),
		BlvdAdminURL:   os.Getenv("URL_ADMIN"),
		BlvdAPIKey:     os.Getenv("BLVD_API_KEY"),
		BlvdBusinessID: os.Getenv("BLVD_BUSINESS_ID"),
		BlvdAPISecret:  os.Getenv("BLVD_API_SECRET"),
		SMSReceipts:    boolEnv("SMS_RECEIPTS", false),
	}

	// Legacy fallback for deployments configured with DATABASE_URL
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BOOKINGPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"BOOKINGPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"PAYMENT_PAGE_URL", config.PaymentPageURL,
		"URL_CLIENT_SET", config.BlvdClientURL != "",
		"URL_ADMIN_SET", config.BlvdAdminURL != "",
		"BLVD_API_KEY_SET", config.BlvdAPIKey != "",
		"BLVD_BUSINESS_ID_SET", config.BlvdBusinessID != "",
		"BLVD_API_SECRET_SET", config.BlvdAPISecret != "",
		"SMS_RECEIPTS", config.SMSReceipts)

	return config
}

// boolEnv reads an on/off toggle such as SMS_RECEIPTS from the environment.
// Unset or unrecognized values fall back to the default.
func boolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("Ignoring unrecognized boolean environment value", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for BookingPipe data (overrides $BOOKINGPIPE_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseDSN, "database DSN for the progress store (overrides $DATABASE_DSN or $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for contact extraction (overrides $OPENAI_API_KEY)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		paymentPageURL: flag.String("payment-page-url", config.PaymentPageURL, "base URL of the hosted payment page (overrides $PAYMENT_PAGE_URL)"),
		consoleMode:    flag.Bool("console", false, "run an interactive console session instead of the HTTP server"),
		consoleQR:      flag.Bool("qr", false, "render payment links as terminal QR codes in console mode"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"paymentPageURL", *flags.paymentPageURL,
		"console", *flags.consoleMode,
		"qr", *flags.consoleQR)

	// Follow a changed state directory when the DSN was left at its default
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return os.MkdirAll(*flags.stateDir, 0755)
	}
	dbDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "db_dir", dbDir)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(*flags.stateDir, 0755)
}

// buildStore opens the progress store matching the configured DSN
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildCommerceOptions constructs Boulevard client configuration options
func buildCommerceOptions(config Config) []commerce.Option {
	var opts []commerce.Option
	if config.BlvdClientURL != "" {
		opts = append(opts, commerce.WithClientURL(config.BlvdClientURL))
	}
	if config.BlvdAdminURL != "" {
		opts = append(opts, commerce.WithAdminURL(config.BlvdAdminURL))
	}
	if config.BlvdAPIKey != "" {
		opts = append(opts, commerce.WithAPIKey(config.BlvdAPIKey))
	}
	if config.BlvdBusinessID != "" {
		opts = append(opts, commerce.WithBusinessID(config.BlvdBusinessID))
	}
	if config.BlvdAPISecret != "" {
		opts = append(opts, commerce.WithAPISecret(config.BlvdAPISecret))
	}
	return opts
}

// buildExtractor prefers the LLM extractor when an OpenAI key is configured
// and falls back to the regex extractor otherwise.
func buildExtractor(flags Flags) extract.FieldExtractor {
	if *flags.openaiKey == "" {
		slog.Debug("No OpenAI API key, using regex contact extraction")
		return extract.NewRegexExtractor()
	}
	client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Warn("Failed to create GenAI client, falling back to regex extraction", "error", err)
		return extract.NewRegexExtractor()
	}
	return genai.NewExtractor(client)
}

// buildNotifier wires SMS receipts when enabled and configured
func buildNotifier(config Config) flow.Notifier {
	if !config.SMSReceipts {
		return nil
	}
	client, err := notify.NewClient()
	if err != nil {
		slog.Warn("SMS receipts enabled but Twilio is not configured", "error", err)
		return nil
	}
	return client
}

// buildEngine assembles the booking engine from configuration
func buildEngine(config Config, flags Flags) (*flow.Engine, error) {
	st, err := buildStore(flags)
	if err != nil {
		return nil, err
	}
	commerceClient, err := commerce.NewClient(buildCommerceOptions(config)...)
	if err != nil {
		return nil, err
	}

	engineOpts := []flow.Option{
		flow.WithStore(st),
		flow.WithCommerceClient(commerceClient),
		flow.WithExtractor(buildExtractor(flags)),
	}
	if *flags.paymentPageURL != "" {
		engineOpts = append(engineOpts, flow.WithPaymentPageURL(*flags.paymentPageURL))
	}
	if notifier := buildNotifier(config); notifier != nil {
		engineOpts = append(engineOpts, flow.WithNotifier(notifier))
	}
	return flow.NewEngine(engineOpts...)
}

// runServer serves the HTTP API until the context is cancelled
func runServer(ctx context.Context, engine *flow.Engine, flags Flags) error {
	var apiOpts []api.Option
	apiOpts = append(apiOpts, api.WithEngine(engine))
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server, err := api.NewServer(apiOpts...)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// runConsole drives one interactive booking session on the terminal
func runConsole(ctx context.Context, engine *flow.Engine, flags Flags) error {
	consoleOpts := []console.Option{
		console.WithEngine(engine),
		console.WithIO(os.Stdin, os.Stdout),
	}
	if *flags.consoleQR {
		consoleOpts = append(consoleOpts, console.WithQR())
	}
	session, err := console.New(consoleOpts...)
	if err != nil {
		return err
	}
	slog.Info("Console session starting", "conversationID", session.Key().ConversationID)
	return session.Run(ctx)
}
