// Package config loads the environment-driven configuration shared by the
// producer, consumer, and orchestrator binaries. Persisted state is nothing
// beyond this environment configuration and the external audit-log topic.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config mirrors the "Environment keys consumed" list in spec §6.
type Config struct {
	Network              string
	ProducerEndpoint     string
	ProducerAccount      string
	ProducerKey          string
	ConsumerAccount      string
	ConsumerKey          string
	MeshLogTopic         string
	AnalyticsAPIKey      string
	StablecoinAsset      string
	MerchantRecipient    string
	TrustScoreDefaultPrice string
	ProducerPort         int
	RateLimitDefaultCalls  int
	RateLimitDefaultPeriod int
	RedisAddr            string
}

// Load reads a .env file if present (missing files are not an error) then
// layers process environment variables on top, matching the teacher's
// "load dotenv, then env wins" convention.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Network:                getEnv("NETWORK", "testnet"),
		ProducerEndpoint:       getEnv("PRODUCER_ENDPOINT", "http://localhost:8080"),
		ProducerAccount:        getEnv("PRODUCER_ACCOUNT", ""),
		ProducerKey:            getEnv("PRODUCER_KEY", ""),
		ConsumerAccount:        getEnv("CONSUMER_ACCOUNT", ""),
		ConsumerKey:            getEnv("CONSUMER_KEY", ""),
		MeshLogTopic:           getEnv("MESH_LOG_TOPIC", "mesh-audit-log"),
		AnalyticsAPIKey:        getEnv("ANALYTICS_API_KEY", ""),
		StablecoinAsset:        getEnv("STABLECOIN_ASSET", ""),
		MerchantRecipient:      getEnv("MERCHANT_RECIPIENT", ""),
		TrustScoreDefaultPrice: getEnv("TRUSTSCORE_DEFAULT_PRICE", "30000"),
		ProducerPort:           getEnvInt("PRODUCER_PORT", 8080),
		RateLimitDefaultCalls:  getEnvInt("RATE_LIMIT_DEFAULT_CALLS", 100),
		RateLimitDefaultPeriod: getEnvInt("RATE_LIMIT_DEFAULT_PERIOD_SECONDS", 86400),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
