// Package config provides application configuration management.
//
// # Overview
//
// Configuration is layered: built-in defaults, an optional .env file, an
// optional YAML file named by TASKHUB_CONFIG, then TASKHUB_* environment
// variables. The merged result is validated before use.
//
// # Configuration Structure
//
// Server settings:
//
//	TASKHUB_HOST="0.0.0.0"
//	TASKHUB_PORT="5000"
//	TASKHUB_REQUEST_TIMEOUT="15s"
//	TASKHUB_ALLOWED_ORIGINS="http://localhost:3000,https://app.example.com"
//	TASKHUB_LOGIN_RATE_PER_MINUTE="10"
//
// Auth settings (both secrets are required and must differ):
//
//	TASKHUB_ACCESS_TOKEN_SECRET="..."
//	TASKHUB_REFRESH_TOKEN_SECRET="..."
//	TASKHUB_ACCESS_TOKEN_TTL="1h"
//	TASKHUB_ALLOW_ROLE_ON_SIGNUP="true"
//
// Storage settings:
//
//	TASKHUB_STORAGE_TYPE="postgres"  # memory, postgres, sqlite
//	TASKHUB_POSTGRES_URL="postgres://localhost/taskhub"
//	TASKHUB_REDIS_URL="redis://localhost:6379"
//
// Broadcast settings:
//
//	TASKHUB_BROADCAST_REDIS_CHANNEL="taskhub:events"
//	TASKHUB_NATS_URL="nats://localhost:4222"
//	TASKHUB_WEBHOOK_URL="https://hooks.example.com/taskhub"
//
// Observability settings:
//
//	TASKHUB_LOG_LEVEL="info"  # debug, info, warn, error
//	TASKHUB_OTEL_ENABLED="true"
//	TASKHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// The same keys appear in YAML in snake case under server, storage, auth,
// broadcast and observability.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s, storage %s\n", cfg.Server.Addr(), cfg.Storage.Type)
package config
