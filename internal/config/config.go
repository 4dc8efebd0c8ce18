package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// Relay server
	Addr     string
	MongoURI string
	MongoDB  string

	// Client
	RelayURL    string
	RedisAddr   string
	KeystoreDir string
}

// Load reads configuration from the environment, with a best-effort .env
// file load first.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:        getenv("ADDR", "localhost:9090"),
		MongoURI:    getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getenv("MONGO_DB", "vibe"),
		RelayURL:    getenv("RELAY_URL", "http://localhost:9090"),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		KeystoreDir: getenv("KEYSTORE_DIR", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
