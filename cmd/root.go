package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hireline"
)

type Config struct {
	Database  *DatabaseConfig  `mapstructure:"database"`
	AI        *AIConfig        `mapstructure:"ai"`
	Knowledge *KnowledgeConfig `mapstructure:"knowledge"`
	Hours     *HoursConfig     `mapstructure:"hours"`
	Gate      *GateConfig      `mapstructure:"gate"`
}

type DatabaseConfig struct {
	// URL is the Postgres DSN. Empty runs the assistant memory-only.
	URL string `mapstructure:"url"`
	// ResumeDir is where uploaded resume files are written.
	ResumeDir string `mapstructure:"resume-dir"`
}

type AIConfig struct {
	MaxTokens  int           `mapstructure:"max-tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Embeddings bool          `mapstructure:"embeddings"`
	Gemini     *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type KnowledgeConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	RecruiterName   string        `mapstructure:"recruiter-name"`
	FormURL         string        `mapstructure:"form-url"`
}

type HoursConfig struct {
	Timezone string `mapstructure:"timezone"`
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Disabled bool   `mapstructure:"disabled"`
}

type GateConfig struct {
	RateLimit        int           `mapstructure:"rate-limit"`
	RateWindow       time.Duration `mapstructure:"rate-window"`
	Blocked          []string      `mapstructure:"blocked"`
	Whitelist        []string      `mapstructure:"whitelist"`
	WhitelistEnabled bool          `mapstructure:"whitelist-enabled"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hireline is a conversational recruitment assistant: it chats with job candidates, screens resumes and tracks pipeline progress",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database.url", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hireline.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A .env file is optional; the environment stays authoritative.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Running without a config file is fine; commands validate what
		// they actually need. A malformed file is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}
