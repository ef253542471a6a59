package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string

	// OpTimeout bounds every storage operation issued by the chat usecases.
	OpTimeout time.Duration

	// ProfanityWords extends the built-in blocklist. Comma-separated in env.
	ProfanityWords []string

	NotificationQueueSize int

	// MailerURL is the external mail service endpoint. Empty disables email.
	MailerURL string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		FirebaseProject:       getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:           getEnv("ENVIRONMENT", "development"),
		OpTimeout:             time.Duration(getEnvAsInt64("CHAT_OP_TIMEOUT_SECONDS", 5)) * time.Second,
		ProfanityWords:        getEnvAsList("CHAT_PROFANITY_WORDS"),
		NotificationQueueSize: int(getEnvAsInt64("NOTIFICATION_QUEUE_SIZE", 256)),
		MailerURL:             getEnv("MAILER_URL", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
