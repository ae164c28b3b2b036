package config

import "quill/pkg/config"

// Config stores environment configuration for Quill.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	FeedAPIURL      string
	FeedBearerToken string
	FeedUserID      string
	SnapshotPath    string
}

// LoadConfig loads the Quill configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:            config.GetEnv("PORT", "18020"),
		DatabaseURL:     config.RequireEnv("DATABASE_URL"),
		RedisURL:        config.GetEnv("REDIS_URL", ""),
		FeedAPIURL:      config.GetEnv("FEED_API_URL", "https://api.twitter.com/2"),
		FeedBearerToken: config.GetEnv("FEED_BEARER_TOKEN", ""),
		FeedUserID:      config.GetEnv("FEED_USER_ID", ""),
		SnapshotPath:    config.GetEnv("FEED_SNAPSHOT_PATH", "data/all_posts.md"),
	}
}
