package oneaccount

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config is the environment-driven configuration for a host process
// embedding the account component. Library users can ignore this entirely
// and construct Auth/Accounts by hand.
type Config struct {
	Addr        string `env:"ONEACCOUNT_ADDR, default=:8080"`
	BaseURL     string `env:"ONEACCOUNT_BASE_URL, default=http://localhost:8080"`
	MountPrefix string `env:"ONEACCOUNT_MOUNT_PREFIX"`
	LogLevel    string `env:"ONEACCOUNT_LOG_LEVEL, default=info"`

	// Secret for the remember-me JWT cookie.
	JWTSecretKey string `env:"ONEACCOUNT_JWT_SECRET_KEY"`

	// Directory for the filesystem stores.
	StoragePath string `env:"ONEACCOUNT_STORAGE_PATH, default=./data"`

	GoogleClientID     string `env:"ONEACCOUNT_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"ONEACCOUNT_GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"ONEACCOUNT_GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"ONEACCOUNT_GITHUB_CLIENT_SECRET"`

	// Optional backing services. Empty values disable the corresponding
	// integration (the component falls back to the filesystem stores and an
	// unthrottled login).
	RedisAddr string `env:"ONEACCOUNT_REDIS_ADDR"`
	MongoURI  string `env:"ONEACCOUNT_MONGO_URI"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
