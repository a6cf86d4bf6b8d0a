package main

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	IMAPServer   string `yaml:"imap_server"`
	IMAPPort     int    `yaml:"imap_port"`
	SMTPServer   string `yaml:"smtp_server"`
	SMTPPort     int    `yaml:"smtp_port"`
	MailUsername string `yaml:"mail_username"`
	MailPassword string `yaml:"mail_password"`

	SearchTerms []string `yaml:"search_terms"`

	LLMProvider         string  `yaml:"llm_provider"`
	LLMModel            string  `yaml:"llm_model"`
	LLMTemperature      float64 `yaml:"llm_temperature"`
	LLMMaxTokens        int     `yaml:"llm_max_tokens"`
	AnthropicAPIKey     string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey        string  `yaml:"openai_api_key"`
	UrgencyKeywordsPath string  `yaml:"urgency_keywords_path"`

	KnowledgeBase []string `yaml:"knowledge_base"`

	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`

	PollSchedule string `yaml:"poll_schedule"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
}

func LoadConfig() Config {
	var cfg Config

	// Local .env first so the overrides below can see it.
	_ = godotenv.Load()

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.IMAPServer, "IMAP_SERVER")
	envOverrideInt(&cfg.IMAPPort, "IMAP_PORT")
	envOverride(&cfg.SMTPServer, "SMTP_SERVER")
	envOverrideInt(&cfg.SMTPPort, "SMTP_PORT")
	envOverride(&cfg.MailUsername, "MAIL_USERNAME")
	envOverride(&cfg.MailPassword, "MAIL_PASSWORD")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverrideFloat(&cfg.LLMTemperature, "LLM_TEMPERATURE")
	envOverrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.UrgencyKeywordsPath, "URGENCY_KEYWORDS_PATH")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.PollSchedule, "POLL_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")

	if terms := os.Getenv("SEARCH_TERMS"); terms != "" {
		cfg.SearchTerms = nil
		for _, term := range strings.Split(terms, ",") {
			term = strings.TrimSpace(term)
			if term != "" {
				cfg.SearchTerms = append(cfg.SearchTerms, term)
			}
		}
	}

	// Defaults
	if cfg.IMAPPort == 0 {
		cfg.IMAPPort = 993
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	if len(cfg.SearchTerms) == 0 {
		cfg.SearchTerms = []string{"support", "query", "request", "help", "issue", "problem"}
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMTemperature == 0 {
		cfg.LLMTemperature = 0.1
	}
	if cfg.LLMMaxTokens == 0 {
		cfg.LLMMaxTokens = 1000
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./emails.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if len(cfg.KnowledgeBase) == 0 {
		cfg.KnowledgeBase = []string{
			"Our product supports multiple authentication methods including OAuth2 and API keys.",
			"For billing inquiries, please contact our finance department at finance@company.com.",
			"Our standard response time for priority support is under 2 hours.",
			"We offer 24/7 support for enterprise customers only.",
			"System maintenance occurs every second Tuesday of the month from 2-4 AM UTC.",
		}
	}

	// Validate required fields
	required := map[string]string{
		"imap_server":   cfg.IMAPServer,
		"smtp_server":   cfg.SMTPServer,
		"mail_username": cfg.MailUsername,
		"mail_password": cfg.MailPassword,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 1 {
		log.Fatalf("invalid llm_temperature '%f': must be between 0 and 1", cfg.LLMTemperature)
	}
	if cfg.LLMMaxTokens < 1 {
		log.Fatalf("invalid llm_max_tokens '%d': must be >= 1", cfg.LLMMaxTokens)
	}
	if cfg.UrgencyKeywordsPath != "" {
		if _, err := LoadUrgencyKeywords(cfg.UrgencyKeywordsPath); err != nil {
			log.Fatalf("invalid urgency_keywords_path '%s': %v", cfg.UrgencyKeywordsPath, err)
		}
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID == "" {
		log.Fatalf("slack_channel_id is required when slack_bot_token is set")
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// SubjectMatches reports whether a subject line contains any configured
// search term, case-insensitive.
func (c Config) SubjectMatches(subject string) bool {
	lowered := strings.ToLower(subject)
	for _, term := range c.SearchTerms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}
