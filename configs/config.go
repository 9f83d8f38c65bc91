package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server struct {
		Port int
		Host string
	}
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Agora struct {
		AppID          string
		AppCertificate string
		TokenTTL       time.Duration
	}
	Scheduler struct {
		Interval     time.Duration
		InitialDelay time.Duration
		ItemTimeout  time.Duration
	}
	Presence struct {
		JoinBatchSize     int
		JoinBatchDebounce time.Duration
	}
	JWT struct {
		Secret string
	}
	Log struct {
		Level string
	}
}

func LoadConfig() (*Config, error) {
	config := &Config{}

	// Server config
	config.Server.Port = getEnvAsInt("SERVER_PORT", 8080)
	config.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")

	// Database config
	config.Database.Host = getEnv("DB_HOST", "localhost")
	config.Database.Port = getEnvAsInt("DB_PORT", 5432)
	config.Database.User = getEnv("DB_USER", "postgres")
	config.Database.Password = getEnv("DB_PASSWORD", "")
	config.Database.DBName = getEnv("DB_NAME", "barlive")
	config.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Agora config
	config.Agora.AppID = getEnv("AGORA_APP_ID", "")
	config.Agora.AppCertificate = getEnv("AGORA_APP_CERTIFICATE", "")
	config.Agora.TokenTTL = getEnvAsDuration("AGORA_TOKEN_TTL", 24*time.Hour)

	// Scheduler config
	config.Scheduler.Interval = getEnvAsDuration("SCHEDULER_INTERVAL", time.Minute)
	config.Scheduler.InitialDelay = getEnvAsDuration("SCHEDULER_INITIAL_DELAY", 10*time.Second)
	config.Scheduler.ItemTimeout = getEnvAsDuration("SCHEDULER_ITEM_TIMEOUT", 30*time.Second)

	// Presence config
	config.Presence.JoinBatchSize = getEnvAsInt("PRESENCE_JOIN_BATCH_SIZE", 10)
	config.Presence.JoinBatchDebounce = getEnvAsDuration("PRESENCE_JOIN_BATCH_DEBOUNCE", 3*time.Second)

	// JWT config
	config.JWT.Secret = getEnv("JWT_SECRET", "")

	// Log config
	config.Log.Level = getEnv("LOG_LEVEL", "info")

	return config, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Agora.AppID == "" || c.Agora.AppCertificate == "" {
		return fmt.Errorf("AGORA_APP_ID and AGORA_APP_CERTIFICATE are required")
	}
	if c.Presence.JoinBatchSize < 1 {
		return fmt.Errorf("PRESENCE_JOIN_BATCH_SIZE must be at least 1")
	}
	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return "user=" + c.Database.User +
		" password=" + c.Database.Password +
		" host=" + c.Database.Host +
		" port=" + strconv.Itoa(c.Database.Port) +
		" dbname=" + c.Database.DBName +
		" sslmode=" + c.Database.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
