package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Logging  Logging  `mapstructure:"logging"`
	AI       AI       `mapstructure:"ai"`
	Source   Source   `mapstructure:"source"`
	Senders  []string `mapstructure:"senders" validate:"dive,required"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Weekly   Weekly   `mapstructure:"weekly"`
	Server   Server   `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir" validate:"required"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	Output string `mapstructure:"output"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model" validate:"required"`
	Timeout           string `mapstructure:"timeout"`
	LanguageDirective string `mapstructure:"language_directive"`
}

// Source selects and configures the mail source
type Source struct {
	Kind  string      `mapstructure:"kind" validate:"oneof=gmail imap pop3 mbox"`
	Gmail GmailConfig `mapstructure:"gmail"`
	IMAP  IMAPConfig  `mapstructure:"imap"`
	POP3  POP3Config  `mapstructure:"pop3"`
	Mbox  MboxConfig  `mapstructure:"mbox"`
}

// GmailConfig holds Gmail API configuration
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	User            string `mapstructure:"user"`
}

// IMAPConfig holds IMAP server configuration
type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	Folder   string `mapstructure:"folder"`
}

// POP3Config holds POP3 server configuration
type POP3Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
}

// MboxConfig holds the path of a local mbox file used as a source
type MboxConfig struct {
	Path string `mapstructure:"path"`
}

// Pipeline holds daily pipeline configuration
type Pipeline struct {
	MaxResults      int      `mapstructure:"max_results" validate:"gte=1"`
	Categories      []string `mapstructure:"categories"`
	LookbackDays    int      `mapstructure:"lookback_days" validate:"gte=0"`
	UnreadOnly      bool     `mapstructure:"unread_only"`
	MaxContentChars int      `mapstructure:"max_content_chars" validate:"gte=100"`
	TrendsOnCycle   bool     `mapstructure:"trends_on_cycle"`
}

// Weekly holds weekly digest configuration
type Weekly struct {
	EndOfWeek string `mapstructure:"end_of_week" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
}

// Server holds HTTP API configuration
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration for the HTTP API
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultSenders are the newsletter addresses the pipeline accepts out of the box.
var DefaultSenders = []string{
	"newsletters@techcrunch.com",
	"newsletter@businessmint.com",
	"newsletter@inc42emails.com",
	"newsletters@yourstory.com",
	"thedailybriefing@substack.com",
	"geopoliticsreport@substack.com",
	"dailybrief@cfr.org",
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".wisgen")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "data")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.language_directive", "Generate responses only in English")

	viper.SetDefault("source.kind", "gmail")
	viper.SetDefault("source.gmail.credentials_file", "credentials.json")
	viper.SetDefault("source.gmail.token_file", "token.json")
	viper.SetDefault("source.gmail.user", "me")
	viper.SetDefault("source.imap.port", 993)
	viper.SetDefault("source.imap.tls", true)
	viper.SetDefault("source.imap.folder", "INBOX")
	viper.SetDefault("source.pop3.port", 995)
	viper.SetDefault("source.pop3.tls", true)

	viper.SetDefault("senders", DefaultSenders)

	viper.SetDefault("pipeline.max_results", 15)
	viper.SetDefault("pipeline.categories", []string{"primary", "updates"})
	viper.SetDefault("pipeline.lookback_days", 1)
	viper.SetDefault("pipeline.unread_only", true)
	viper.SetDefault("pipeline.max_content_chars", 8000)
	viper.SetDefault("pipeline.trends_on_cycle", false)

	viper.SetDefault("weekly.end_of_week", "sunday")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "5m")
	viper.SetDefault("server.cors.enabled", false)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
		"API_KEY",
	})

	bindEnvKeys("ai.gemini.model", []string{
		"GEMINI_MODEL",
	})

	bindEnvKeys("source.imap.password", []string{
		"IMAP_PASSWORD",
		"WISGEN_IMAP_PASSWORD",
	})

	bindEnvKeys("source.pop3.password", []string{
		"POP3_PASSWORD",
		"WISGEN_POP3_PASSWORD",
	})

	bindEnvKeys("source.kind", []string{
		"WISGEN_SOURCE",
	})

	bindEnvKeys("app.data_dir", []string{
		"WISGEN_DATA_DIR",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"WISGEN_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	config.App.DataDir = expandPath(config.App.DataDir)
	config.Source.Gmail.CredentialsFile = expandPath(config.Source.Gmail.CredentialsFile)
	config.Source.Gmail.TokenFile = expandPath(config.Source.Gmail.TokenFile)
	config.Source.Mbox.Path = expandPath(config.Source.Mbox.Path)
	config.Weekly.EndOfWeek = strings.ToLower(strings.TrimSpace(config.Weekly.EndOfWeek))

	if config.AI.Gemini.Timeout != "" {
		if _, err := time.ParseDuration(config.AI.Gemini.Timeout); err != nil {
			return fmt.Errorf("invalid duration for ai.gemini.timeout: %s", config.AI.Gemini.Timeout)
		}
	}

	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// Validate checks struct tags and the cross-field rules of the mail source.
func Validate(config *Config) error {
	var problems []string

	if err := validator.New().Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	switch config.Source.Kind {
	case "imap":
		if config.Source.IMAP.Host == "" || config.Source.IMAP.Username == "" {
			problems = append(problems, "IMAP source requires source.imap.host and source.imap.username")
		}
	case "pop3":
		if config.Source.POP3.Host == "" || config.Source.POP3.Username == "" {
			problems = append(problems, "POP3 source requires source.pop3.host and source.pop3.username")
		}
	case "mbox":
		if config.Source.Mbox.Path == "" {
			problems = append(problems, "mbox source requires source.mbox.path")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// GeminiTimeout returns the parsed LLM timeout, zero when unset.
func (c *Config) GeminiTimeout() time.Duration {
	d, _ := time.ParseDuration(c.AI.Gemini.Timeout)
	return d
}

// Weekday returns the configured end-of-week day.
func (w Weekly) Weekday() time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), w.EndOfWeek) {
			return d
		}
	}
	return time.Sunday
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
