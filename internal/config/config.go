package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Thresholds holds the anomaly rule constants. They are fixed at startup;
// the rule engine receives them at construction and stays a pure function.
type Thresholds struct {
	TheftCurrentAmps float64 // current above this with low power -> theft
	TheftPowerWatts  float64 // power below this with high current -> theft
	SpikePowerWatts  float64 // power above this -> anomaly
	WastageLDR       float64 // ambient light above this counts as "well lit"
	WastagePowerW    float64 // power above this while unoccupied and lit -> wastage
}

// Config holds all configuration values
type Config struct {
	// PostgreSQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBURL      string
	DBCACert   string

	// HTTP (ingest + ws + health)
	HTTPAddr string

	// Viewer token secret for /ws; empty disables the check.
	WSJWTSecret string

	// Kafka ingest source; consumer starts only when brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	KafkaCACert  string
	KafkaCert    string // optional client cert
	KafkaKey     string // optional client key

	// Energy integration
	SampleInterval time.Duration

	Rules Thresholds
}

// DefaultThresholds are the reference rule constants.
var DefaultThresholds = Thresholds{
	TheftCurrentAmps: 5.0,
	TheftPowerWatts:  50.0,
	SpikePowerWatts:  5000.0,
	WastageLDR:       800.0,
	WastagePowerW:    100.0,
}

func LoadConfig() *Config {
	// Load .env if exists
	_ = godotenv.Load() // ignore error, fallback to env vars

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBURL:      os.Getenv("DATABASE_URL"),
		DBCACert:   os.Getenv("DB_CA_CERT"),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		WSJWTSecret: os.Getenv("WS_JWT_SECRET"),

		KafkaTopic:   os.Getenv("KAFKA_TOPIC"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "gridwatch-ingest"),
		KafkaCACert:  os.Getenv("KAFKA_CA_CERT"),
		KafkaCert:    os.Getenv("KAFKA_CLIENT_CERT"),
		KafkaKey:     os.Getenv("KAFKA_CLIENT_KEY"),

		SampleInterval: getEnvDuration("SAMPLE_INTERVAL", 5*time.Second),

		Rules: Thresholds{
			TheftCurrentAmps: getEnvFloat("THEFT_CURRENT_AMPS", DefaultThresholds.TheftCurrentAmps),
			TheftPowerWatts:  getEnvFloat("THEFT_POWER_WATTS", DefaultThresholds.TheftPowerWatts),
			SpikePowerWatts:  getEnvFloat("SPIKE_POWER_WATTS", DefaultThresholds.SpikePowerWatts),
			WastageLDR:       getEnvFloat("WASTAGE_LDR", DefaultThresholds.WastageLDR),
			WastagePowerW:    getEnvFloat("WASTAGE_POWER_WATTS", DefaultThresholds.WastagePowerW),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKER"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	// Build DB URL if not provided
	if cfg.DBURL == "" {
		sslmode := "disable"
		if cfg.DBCACert != "" {
			sslmode = "verify-full"
		}
		cfg.DBURL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, sslmode,
		)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
