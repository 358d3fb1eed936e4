package config

import (
	"gopkg.in/yaml.v3"
	"os"
)

type FilesConfig struct {
	RootDir string `yaml:"root_dir"`
}

type TelegramConfig struct {
	BotToken    string  `yaml:"bot_token"`
	WebhookURL  string  `yaml:"webhook_url"`
	OperatorIDs []int64 `yaml:"operator_ids"`
}

type RobloxConfig struct {
	UsersURL       string `yaml:"users_url"`
	GroupsURL      string `yaml:"groups_url"`
	GroupID        int64  `yaml:"group_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		AlertTo      string `yaml:"alert_to"`
	} `yaml:"email"`
	Verification struct {
		CodeLength int `yaml:"code_length"`
	} `yaml:"verification"`
	Telegram TelegramConfig `yaml:"telegram"`
	Roblox   RobloxConfig   `yaml:"roblox"`
	Files    FilesConfig    `yaml:"files"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	if cfg.Roblox.UsersURL == "" {
		cfg.Roblox.UsersURL = "https://users.roblox.com"
	}
	if cfg.Roblox.GroupsURL == "" {
		cfg.Roblox.GroupsURL = "https://groups.roblox.com"
	}
	if cfg.Roblox.TimeoutSeconds <= 0 {
		cfg.Roblox.TimeoutSeconds = 10
	}
	if cfg.Verification.CodeLength <= 0 {
		cfg.Verification.CodeLength = 8
	}
	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	return &cfg
}
