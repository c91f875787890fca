package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  Database  `yaml:"database"`
	Google    Google    `yaml:"google"`
	Gemini    Gemini    `yaml:"gemini"`
	Translate Translate `yaml:"translate"`
	Chat      Chat      `yaml:"chat"`
	API       API       `yaml:"api"`
	Schedule  Schedule  `yaml:"schedule"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Google struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	TokenFile    string   `yaml:"token_file"`
	Scopes       []string `yaml:"scopes"`
}

type Gemini struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"max_tokens"`
	AnswerMaxTokens   int     `yaml:"answer_max_tokens"`
	Temperature       float32 `yaml:"temperature"`
	AnswerTemperature float32 `yaml:"answer_temperature"`
	CacheHours        int     `yaml:"cache_hours"`
	RequestsPerMin    int     `yaml:"requests_per_minute"`
}

type Translate struct {
	Endpoint string `yaml:"endpoint"`
	TimeoutS int    `yaml:"timeout_seconds"`
}

type Chat struct {
	HistoryTurns       int    `yaml:"history_turns"`
	SessionTTLMinutes  int    `yaml:"session_ttl_minutes"`
	PastBufferMinutes  int    `yaml:"past_buffer_minutes"`
	RegisterURL        string `yaml:"register_url"`
	DefaultDurationMin int    `yaml:"default_duration_minutes"`
}

type API struct {
	Port    int    `yaml:"port"`
	AuthKey string `yaml:"auth_key"`
}

type Schedule struct {
	Timezone            string `yaml:"timezone"` // "Asia/Kolkata"
	CacheSweepMinutes   int    `yaml:"cache_sweep_minutes"`
	SessionSweepMinutes int    `yaml:"session_sweep_minutes"`
	MeetingSyncMinutes  int    `yaml:"meeting_sync_minutes"`
}

func Load(path string) (*Config, error) {
	path = expandHome(path)

	// Create default config if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return nil, fmt.Errorf("config file created at %s - please update it with your settings", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = os.ExpandEnv("$HOME/.metamate/data.db")
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)

	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = "http://localhost:8080/callback"
	}
	if cfg.Google.TokenFile == "" {
		cfg.Google.TokenFile = os.ExpandEnv("$HOME/.metamate/token.json")
	}
	cfg.Google.TokenFile = expandHome(cfg.Google.TokenFile)
	if len(cfg.Google.Scopes) == 0 {
		cfg.Google.Scopes = []string{
			"https://www.googleapis.com/auth/calendar.events",
		}
	}

	// Gemini defaults
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Gemini.MaxTokens == 0 {
		cfg.Gemini.MaxTokens = 2000
	}
	if cfg.Gemini.AnswerMaxTokens == 0 {
		cfg.Gemini.AnswerMaxTokens = 512
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.3
	}
	if cfg.Gemini.AnswerTemperature == 0 {
		cfg.Gemini.AnswerTemperature = 0.8
	}
	if cfg.Gemini.CacheHours == 0 {
		cfg.Gemini.CacheHours = 24
	}
	if cfg.Gemini.RequestsPerMin == 0 {
		cfg.Gemini.RequestsPerMin = 10
	}

	// Translate defaults
	if cfg.Translate.Endpoint == "" {
		cfg.Translate.Endpoint = "https://translate.googleapis.com/translate_a/single"
	}
	if cfg.Translate.TimeoutS == 0 {
		cfg.Translate.TimeoutS = 10
	}

	// Chat defaults
	if cfg.Chat.HistoryTurns == 0 {
		cfg.Chat.HistoryTurns = 6
	}
	if cfg.Chat.SessionTTLMinutes == 0 {
		cfg.Chat.SessionTTLMinutes = 120
	}
	if cfg.Chat.PastBufferMinutes == 0 {
		cfg.Chat.PastBufferMinutes = 10
	}
	if cfg.Chat.RegisterURL == "" {
		cfg.Chat.RegisterURL = "https://metamate.app/"
	}
	if cfg.Chat.DefaultDurationMin == 0 {
		cfg.Chat.DefaultDurationMin = 30
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 8081
	}

	// Schedule defaults
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Asia/Kolkata"
	}
	if cfg.Schedule.CacheSweepMinutes == 0 {
		cfg.Schedule.CacheSweepMinutes = 60
	}
	if cfg.Schedule.SessionSweepMinutes == 0 {
		cfg.Schedule.SessionSweepMinutes = 15
	}
	if cfg.Schedule.MeetingSyncMinutes == 0 {
		cfg.Schedule.MeetingSyncMinutes = 5
	}
}

func validate(cfg *Config) error {
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required")
	}
	return nil
}

func createDefaultConfig(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	exampleConfig := `# MetaMate Configuration

database:
  path: ~/.metamate/data.db

gemini:
  # Get from AI Studio: https://aistudio.google.com/app/apikey
  api_key: YOUR_GEMINI_API_KEY_HERE
  model: gemini-2.5-flash
  max_tokens: 2000
  answer_max_tokens: 512
  temperature: 0.3
  answer_temperature: 0.8
  cache_hours: 24
  requests_per_minute: 10

google:
  # Needed only for calendar scheduling; get these from Google Cloud Console
  client_id: YOUR_CLIENT_ID_HERE
  client_secret: YOUR_CLIENT_SECRET_HERE
  redirect_url: http://localhost:8080/callback
  token_file: ~/.metamate/token.json

chat:
  history_turns: 6
  session_ttl_minutes: 120
  past_buffer_minutes: 10
  register_url: https://metamate.app/

api:
  port: 8081
  auth_key: CHANGE_ME

schedule:
  timezone: Asia/Kolkata
  meeting_sync_minutes: 5
`

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
