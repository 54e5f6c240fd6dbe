package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix namespaces every variable read by parseEnv.
const envPrefix = "DIAGRAMS_"

// loadDotEnv is a seam so tests can keep a stray .env out of the picture.
var loadDotEnv = func() { _ = godotenv.Load() }

// parseEnv overlays DIAGRAMS_* environment variables. A .env file in the
// working directory is loaded first; variables already set in the process
// environment win over it. Malformed numbers and durations are ignored.
func parseEnv(config *Config) {
	loadDotEnv()

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.GRPCAddr, "GRPC_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envString(&config.TokenIssuer, "TOKEN_ISSUER")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY")
	envDuration(&config.RevocationPurgeInterval, "REVOCATION_PURGE_INTERVAL")
	envDuration(&config.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	envDuration(&config.ExportURLValidity, "EXPORT_URL_VALIDITY")

	if v, ok := os.LookupEnv(envPrefix + "LOGIN_RATE_PER_SECOND"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.LoginRatePerSecond = f
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "LOGIN_RATE_BURST"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.LoginRateBurst = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "MAX_BODY_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxBodyBytes = n
		}
	}
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = v
	}
}

func envDuration(dst *time.Duration, name string) {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
