package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TASKPLANNER"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "taskplanner"

// Storage backends.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config captures the process configuration.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Sheets    SheetsConfig
	Assistant AssistantConfig
	Log       LogConfig
	Seed      SeedConfig
}

type HTTPConfig struct {
	Port int
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type StorageConfig struct {
	Backend string
	DataDir string
	DSN     string
}

type AuthConfig struct {
	SecretKey  string
	SessionTTL time.Duration
	HashScheme string
}

type CORSConfig struct {
	Origins []string
}

type SheetsConfig struct {
	Enabled         bool
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	Range           string
	Timeout         time.Duration
}

type AssistantConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	ChatMaxTokens   int
	SearchMaxTokens int
}

type LogConfig struct {
	Level  string
	Format string
}

type SeedConfig struct {
	File string
}

// legacyEnv lists environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"auth.secret_key":         "SECRET_KEY",
	"storage.dsn":             "DATABASE_URL",
	"storage.data_dir":        "JSON_DATA_DIR",
	"storage.use_json":        "USE_JSON_STORAGE",
	"cors.origins":            "CORS_ORIGINS",
	"assistant.api_key":       "ANTHROPIC_API_KEY",
	"sheets.spreadsheet_id":   "GOOGLE_SHEET_ID",
	"sheets.credentials_json": "GOOGLE_SERVICE_ACCOUNT_JSON",
}

// NewViper prepares a viper instance with defaults, environment bindings and
// the optional config file. An explicitly named file must exist; the default
// ./taskplanner.yaml may be absent.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("http.port", 8000)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.hash_scheme", "sha256")
	v.SetDefault("sheets.range", "Sheet1!A:K")
	v.SetDefault("sheets.timeout", "10s")
	v.SetDefault("assistant.base_url", "https://api.anthropic.com")
	v.SetDefault("assistant.model", "claude-sonnet-4-20250514")
	v.SetDefault("assistant.timeout", "60s")
	v.SetDefault("assistant.chat_max_tokens", 1024)
	v.SetDefault("assistant.search_max_tokens", 2048)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	// Keys without defaults must be bound so AutomaticEnv sees them in IsSet.
	for _, key := range []string{"storage.backend", "sheets.enabled", "sheets.credentials_file", "seed.file"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName(DefaultConfigName)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load converts v into a Config, reporting every missing and invalid key at once.
func Load(v *viper.Viper) (Config, error) {
	var (
		cfg     Config
		missing []string
		invalid []string
	)

	intValue := func(key string, min int) int {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
		if err != nil || n < min {
			invalid = append(invalid, key)
			return 0
		}
		return n
	}
	durationValue := func(key string) time.Duration {
		d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return 0
		}
		return d
	}
	oneOf := func(key string, allowed ...string) string {
		value := strings.ToLower(strings.TrimSpace(v.GetString(key)))
		for _, a := range allowed {
			if value == a {
				return value
			}
		}
		invalid = append(invalid, key)
		return ""
	}

	cfg.HTTP.Port = intValue("http.port", 1)
	if cfg.HTTP.Port > 65535 {
		invalid = append(invalid, "http.port")
	}

	cfg.Storage.DataDir = strings.TrimSpace(v.GetString("storage.data_dir"))
	cfg.Storage.DSN = strings.TrimSpace(v.GetString("storage.dsn"))
	cfg.Storage.Backend = storageBackend(v, cfg.Storage.DSN)
	switch cfg.Storage.Backend {
	case BackendJSON:
		if cfg.Storage.DataDir == "" {
			missing = append(missing, "storage.data_dir")
		}
	case BackendSQLite:
		if cfg.Storage.DSN == "" {
			cfg.Storage.DSN = "file:taskplanner.db"
		}
	case BackendPostgres:
		if cfg.Storage.DSN == "" {
			missing = append(missing, "storage.dsn")
		}
	default:
		invalid = append(invalid, "storage.backend")
	}

	cfg.Auth.SecretKey = strings.TrimSpace(v.GetString("auth.secret_key"))
	switch {
	case cfg.Auth.SecretKey == "":
		missing = append(missing, "auth.secret_key")
	case len(cfg.Auth.SecretKey) < 16:
		invalid = append(invalid, "auth.secret_key")
	}
	cfg.Auth.SessionTTL = durationValue("auth.session_ttl")
	cfg.Auth.HashScheme = oneOf("auth.hash_scheme", "sha256", "argon2id")

	cfg.CORS.Origins = stringList(v.Get("cors.origins"))

	cfg.Sheets.SpreadsheetID = strings.TrimSpace(v.GetString("sheets.spreadsheet_id"))
	cfg.Sheets.CredentialsJSON = strings.TrimSpace(v.GetString("sheets.credentials_json"))
	cfg.Sheets.CredentialsFile = strings.TrimSpace(v.GetString("sheets.credentials_file"))
	cfg.Sheets.Range = strings.TrimSpace(v.GetString("sheets.range"))
	cfg.Sheets.Timeout = durationValue("sheets.timeout")
	if v.IsSet("sheets.enabled") {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v.GetString("sheets.enabled")))
		if err != nil {
			invalid = append(invalid, "sheets.enabled")
		}
		cfg.Sheets.Enabled = enabled
	} else {
		cfg.Sheets.Enabled = cfg.Sheets.SpreadsheetID != ""
	}
	if cfg.Sheets.Enabled {
		if cfg.Sheets.SpreadsheetID == "" {
			missing = append(missing, "sheets.spreadsheet_id")
		}
		if cfg.Sheets.CredentialsJSON == "" && cfg.Sheets.CredentialsFile == "" {
			missing = append(missing, "sheets.credentials_json|sheets.credentials_file")
		}
	}

	cfg.Assistant.APIKey = strings.TrimSpace(v.GetString("assistant.api_key"))
	cfg.Assistant.BaseURL = strings.TrimRight(strings.TrimSpace(v.GetString("assistant.base_url")), "/")
	cfg.Assistant.Model = strings.TrimSpace(v.GetString("assistant.model"))
	cfg.Assistant.Timeout = durationValue("assistant.timeout")
	cfg.Assistant.ChatMaxTokens = intValue("assistant.chat_max_tokens", 1)
	cfg.Assistant.SearchMaxTokens = intValue("assistant.search_max_tokens", 1)

	cfg.Log.Level = oneOf("log.level", "debug", "info", "warn", "error")
	cfg.Log.Format = oneOf("log.format", "json", "text")

	cfg.Seed.File = strings.TrimSpace(v.GetString("seed.file"))

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// storageBackend resolves the backend. Without an explicit choice a legacy
// USE_JSON_STORAGE=false selects the database named by the DSN.
func storageBackend(v *viper.Viper, dsn string) string {
	if v.IsSet("storage.backend") {
		backend := strings.ToLower(strings.TrimSpace(v.GetString("storage.backend")))
		if backend == "" {
			return BackendJSON
		}
		return backend
	}
	if !v.IsSet("storage.use_json") {
		return BackendJSON
	}
	useJSON, err := strconv.ParseBool(strings.TrimSpace(v.GetString("storage.use_json")))
	if err != nil || useJSON {
		return BackendJSON
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return BackendPostgres
	}
	return BackendSQLite
}

// stringList accepts a YAML list or a comma separated string.
func stringList(raw any) []string {
	var items []string
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(value, ",")
	case []string:
		items = value
	case []any:
		for _, item := range value {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(value)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
