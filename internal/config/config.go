package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/services"
)

// Config holds all application configuration
type Config struct {
	ServerAddress  string      `json:"serverAddress"`
	AllowedOrigins []string    `json:"allowedOrigins"`
	AdminAppURL    string      `json:"adminAppUrl"`
	GoogleCloud    GoogleCloud `json:"googleCloud"`
	Adobe          Adobe       `json:"adobe"`
	Sync           Sync        `json:"sync"`
}

// GoogleCloud configuration for the metadata store, rendition bucket and
// identity provider.
type GoogleCloud struct {
	ProjectID       string `json:"projectId"`
	StorageBucket   string `json:"storageBucket"`
	CredentialsFile string `json:"credentialsFile"`
}

// Adobe configuration for the Lightroom partner API and IMS.
type Adobe struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectUrl"`
	AdminUserID  string `json:"adminUserId"`
	APIBaseURL   string `json:"apiBaseUrl"`
	IMSBaseURL   string `json:"imsBaseUrl"`
}

// Sync tuning knobs.
type Sync struct {
	MaxRenditionWorkers int `json:"maxRenditionWorkers"`
	CleanupQueueSize    int `json:"cleanupQueueSize"`
	CleanupMaxTries     int `json:"cleanupMaxTries"`
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress:  ":5000",
		AllowedOrigins: []string{"http://localhost:3000"},
		Adobe: Adobe{
			APIBaseURL: lightroom.DefaultBaseURL,
			IMSBaseURL: services.DefaultIMSBaseURL,
		},
		Sync: Sync{
			MaxRenditionWorkers: 8,
			CleanupQueueSize:    256,
			CleanupMaxTries:     5,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	if adminApp := os.Getenv("ADMIN_APP_URL"); adminApp != "" {
		cfg.AdminAppURL = adminApp
	}
	if project := os.Getenv("GOOGLE_PROJECT_ID"); project != "" {
		cfg.GoogleCloud.ProjectID = project
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		cfg.GoogleCloud.StorageBucket = bucket
	}
	if creds := os.Getenv("GOOGLE_CREDENTIALS_FILE"); creds != "" {
		cfg.GoogleCloud.CredentialsFile = creds
	}
	if id := os.Getenv("ADOBE_CLIENT_ID"); id != "" {
		cfg.Adobe.ClientID = id
	}
	if secret := os.Getenv("ADOBE_CLIENT_SECRET"); secret != "" {
		cfg.Adobe.ClientSecret = secret
	}
	if redirect := os.Getenv("ADOBE_REDIRECT_URL"); redirect != "" {
		cfg.Adobe.RedirectURL = redirect
	}
	if admin := os.Getenv("ADOBE_ADMIN_USER_ID"); admin != "" {
		cfg.Adobe.AdminUserID = admin
	}
	if workers := os.Getenv("MAX_RENDITION_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			cfg.Sync.MaxRenditionWorkers = n
		}
	}

	return cfg, nil
}
