// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyAdminID         = "ADMIN_ID"
	KeyGroupID         = "GROUP_ID"
	KeyGroupInviteLink = "GROUP_INVITE_LINK"
	KeyStoreBackend    = "STORE_BACKEND"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeySupabaseURL     = "SUPABASE_URL"
	KeySupabaseKey     = "SUPABASE_KEY"
	KeyRedisURL        = "REDIS_URL"
	KeyWebhookSecret   = "WEBHOOK_SECRET"
	KeyPublicURL       = "PUBLIC_URL"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyHandlerTimeout  = "HANDLER_TIMEOUT"
	KeyRateLimit       = "RATE_LIMIT_PER_MINUTE"
	KeySupportContact  = "SUPPORT_CONTACT"
	KeySupportEmail    = "SUPPORT_EMAIL"
	KeySupportWebsite  = "SUPPORT_WEBSITE"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Supported store backends.
	BackendMongo    = "mongo"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"

	// Defaults for optional settings.
	DefaultAppEnv         = EnvProduction
	DefaultLogLevel       = "info"
	DefaultHTTPPort       = 8080
	DefaultStoreBackend   = BackendMongo
	DefaultHandlerTimeout = 8 * time.Second
	DefaultRateLimit      = 10
	DefaultSupportContact = "@admin_username"
	DefaultSupportEmail   = "support@example.com"
	DefaultSupportWebsite = "https://example.com"

	// Recommended database names by environment.
	DefaultMongoDBProd = "support_bot"
	DefaultMongoDBDev  = "support_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAdminID,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id of the support administrator.",
	},
	{
		Key:         KeyGroupID,
		Example:     "-1001234567890",
		Description: "Moderated group chat id.",
		Notes:       "When unset every group the bot is in is moderated.",
	},
	{
		Key:         KeyGroupInviteLink,
		Example:     "https://t.me/+invite",
		Description: "Invite link sent to members who leave the group.",
	},
	{
		Key:         KeyStoreBackend,
		Example:     BackendMongo + " / " + BackendSupabase + " / " + BackendMemory,
		Default:     DefaultStoreBackend,
		Description: "Data store gateway implementation.",
		Notes:       BackendMemory + " keeps state in process and is meant for local development only.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string.",
		Notes:       "Required when " + KeyStoreBackend + "=" + BackendMongo + ".",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Description: "MongoDB database name.",
		Notes:       "Required when " + KeyStoreBackend + "=" + BackendMongo + ".",
	},
	{
		Key:         KeySupabaseURL,
		Example:     "https://project.supabase.co",
		Description: "Supabase project URL (PostgREST is served under /rest/v1).",
		Notes:       "Required when " + KeyStoreBackend + "=" + BackendSupabase + ".",
	},
	{
		Key:         KeySupabaseKey,
		Example:     "service-role-key",
		Description: "Supabase API key.",
		Notes:       "Required when " + KeyStoreBackend + "=" + BackendSupabase + ".",
	},
	{
		Key:         KeyRedisURL,
		Example:     "redis://localhost:6379/0",
		Description: "Enables duplicate webhook delivery suppression.",
	},
	{
		Key:         KeyWebhookSecret,
		Example:     "long-random-string",
		Description: "Secret token Telegram echoes on every webhook call; also guards /webhook/set.",
	},
	{
		Key:         KeyPublicURL,
		Example:     "https://bot.example.com",
		Description: "Public base URL used when registering the webhook.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port serving the webhook, health and metrics endpoints.",
	},
	{
		Key:         KeyHandlerTimeout,
		Example:     DefaultHandlerTimeout.String(),
		Default:     DefaultHandlerTimeout.String(),
		Description: "Upper bound for processing a single update.",
	},
	{
		Key:         KeyRateLimit,
		Example:     strconv.Itoa(DefaultRateLimit),
		Default:     strconv.Itoa(DefaultRateLimit),
		Description: "Private updates accepted per user per minute; 0 disables limiting.",
	},
	{
		Key:         KeySupportContact,
		Example:     DefaultSupportContact,
		Default:     DefaultSupportContact,
		Description: "Admin handle shown in the contact info screen.",
	},
	{
		Key:         KeySupportEmail,
		Example:     DefaultSupportEmail,
		Default:     DefaultSupportEmail,
		Description: "Support email shown in the contact info screen.",
	},
	{
		Key:         KeySupportWebsite,
		Example:     DefaultSupportWebsite,
		Default:     DefaultSupportWebsite,
		Description: "Website shown in the contact info screen.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	AdminID         int64
	GroupID         int64
	GroupInviteLink string
	StoreBackend    string
	MongoURI        string
	MongoDB         string
	SupabaseURL     string
	SupabaseKey     string
	RedisURL        string
	WebhookSecret   string
	PublicURL       string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	HandlerTimeout  time.Duration
	RateLimit       int
	SupportContact  string
	SupportEmail    string
	SupportWebsite  string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		GroupInviteLink: strings.TrimSpace(os.Getenv(KeyGroupInviteLink)),
		StoreBackend:    firstNonEmpty(normalizeEnv(os.Getenv(KeyStoreBackend)), DefaultStoreBackend),
		MongoURI:        strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:         strings.TrimSpace(os.Getenv(KeyMongoDB)),
		SupabaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv(KeySupabaseURL)), "/"),
		SupabaseKey:     strings.TrimSpace(os.Getenv(KeySupabaseKey)),
		RedisURL:        strings.TrimSpace(os.Getenv(KeyRedisURL)),
		WebhookSecret:   strings.TrimSpace(os.Getenv(KeyWebhookSecret)),
		PublicURL:       strings.TrimRight(strings.TrimSpace(os.Getenv(KeyPublicURL)), "/"),
		LogLevel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		HandlerTimeout:  DefaultHandlerTimeout,
		RateLimit:       DefaultRateLimit,
		SupportContact:  firstNonEmpty(os.Getenv(KeySupportContact), DefaultSupportContact),
		SupportEmail:    firstNonEmpty(os.Getenv(KeySupportEmail), DefaultSupportEmail),
		SupportWebsite:  firstNonEmpty(os.Getenv(KeySupportWebsite), DefaultSupportWebsite),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}
	if err := validateBackend(cfg.StoreBackend); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	adminRaw := strings.TrimSpace(os.Getenv(KeyAdminID))
	if adminRaw == "" {
		missing = append(missing, KeyAdminID)
	} else {
		adminID, parseErr := strconv.ParseInt(adminRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminID, parseErr)
		}
		if adminID <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive user id", KeyAdminID)
		}
		cfg.AdminID = adminID
	}

	switch cfg.StoreBackend {
	case BackendMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	case BackendSupabase:
		if cfg.SupabaseURL == "" {
			missing = append(missing, KeySupabaseURL)
		}
		if cfg.SupabaseKey == "" {
			missing = append(missing, KeySupabaseKey)
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.StoreBackend == BackendMongo && !isMongoURI(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if groupRaw := strings.TrimSpace(os.Getenv(KeyGroupID)); groupRaw != "" {
		groupID, parseErr := strconv.ParseInt(groupRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyGroupID, parseErr)
		}
		cfg.GroupID = groupID
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if timeoutRaw := strings.TrimSpace(os.Getenv(KeyHandlerTimeout)); timeoutRaw != "" {
		timeout, parseErr := time.ParseDuration(timeoutRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHandlerTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHandlerTimeout)
		}
		cfg.HandlerTimeout = timeout
	}

	if limitRaw := strings.TrimSpace(os.Getenv(KeyRateLimit)); limitRaw != "" {
		limit, parseErr := strconv.Atoi(limitRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyRateLimit, parseErr)
		}
		if limit < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyRateLimit)
		}
		cfg.RateLimit = limit
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the resolved configuration with secrets masked so it
// can be printed during config checks.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"telegram_token: " + maskSecret(cfg.TelegramToken),
		"admin_id: " + strconv.FormatInt(cfg.AdminID, 10),
		"group_id: " + strconv.FormatInt(cfg.GroupID, 10),
		"store_backend: " + cfg.StoreBackend,
		"mongo_uri: " + redactURL(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"supabase_url: " + cfg.SupabaseURL,
		"supabase_key: " + maskSecret(cfg.SupabaseKey),
		"redis_url: " + redactURL(cfg.RedisURL),
		"webhook_secret: " + maskSecret(cfg.WebhookSecret),
		"public_url: " + cfg.PublicURL,
		"handler_timeout: " + cfg.HandlerTimeout.String(),
		"rate_limit_per_minute: " + strconv.Itoa(cfg.RateLimit),
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "redacted"
	}

	return value[:4] + "...redacted"
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "redacted"
	}
	parsed.User = nil

	return parsed.String()
}

func isMongoURI(value string) bool {
	return strings.HasPrefix(value, "mongodb://") || strings.HasPrefix(value, "mongodb+srv://")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateBackend(backend string) error {
	switch backend {
	case BackendMongo, BackendSupabase, BackendMemory:
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q, %q or %q", KeyStoreBackend, BackendMongo, BackendSupabase, BackendMemory)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
