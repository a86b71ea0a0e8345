package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	Model        string  `mapstructure:"model"`
	BaseURL      string  `mapstructure:"baseURL"`
	Temperature  float64 `mapstructure:"temperature"`
	OpenAIAPIKey string  `mapstructure:"openaiAPIKey"`
	GeminiAPIKey string  `mapstructure:"geminiAPIKey"`
}

type MapsConfig struct {
	BaseURL           string        `mapstructure:"baseURL"`
	AccessKey         string        `mapstructure:"accessKey"`
	Region            string        `mapstructure:"region"`
	Tactics           int           `mapstructure:"tactics"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	CacheTTL          time.Duration `mapstructure:"cacheTTL"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT      JWTConfig  `mapstructure:"jwt"`
	LLM      LLMConfig  `mapstructure:"llm"`
	Maps     MapsConfig `mapstructure:"maps"`
	Expenses struct {
		SyncDebounce time.Duration `mapstructure:"syncDebounce"`
	} `mapstructure:"expenses"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
	RateLimit struct {
		PlanRequestsPerMinute int `mapstructure:"planRequestsPerMinute"`
	} `mapstructure:"rateLimit"`
}

// secrets never live in config.yml
var envBindings = map[string]string{
	"jwt.secretKey":                  "JWT_SECRET",
	"llm.openaiAPIKey":               "OPENAI_API_KEY",
	"llm.geminiAPIKey":               "GOOGLE_GEMINI_API_KEY",
	"llm.baseURL":                    "OPENAI_BASE_URL",
	"llm.model":                      "LLM_MODEL",
	"llm.provider":                   "LLM_PROVIDER",
	"maps.accessKey":                 "BAIDU_MAP_AK",
	"repositories.postgres.host":     "POSTGRES_HOST",
	"repositories.postgres.port":     "POSTGRES_PORT",
	"repositories.postgres.username": "POSTGRES_USER",
	"repositories.postgres.password": "POSTGRES_PASSWORD",
	"repositories.postgres.db":       "POSTGRES_DB",
	"mode":                           "APP_ENV",
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err = v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
