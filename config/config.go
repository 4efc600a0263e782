package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB       DBConfig
	Routing  RoutingConfig
	Store    StoreConfig
	Delivery DeliveryConfig
	Telegram TelegramConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RoutingConfig points at the external VRP solver (GraphHopper-compatible API).
type RoutingConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// StoreConfig is the fallback depot location, used when the settings
// table has no store_lat/store_lng rows yet.
type StoreConfig struct {
	Lat float64
	Lng float64
}

type DeliveryConfig struct {
	RatePerKm int64 // shipping fee per km
}

type TelegramConfig struct {
	NotifyToken string // token for the shipper notification bot; empty disables notifications
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	timeoutSec, _ := strconv.Atoi(getEnv("ROUTING_TIMEOUT_SECONDS", "15"))
	ratePerKm, _ := strconv.ParseInt(getEnv("DELIVERY_RATE_PER_KM", "5000"), 10, 64)
	storeLat, _ := strconv.ParseFloat(getEnv("STORE_LAT", "10.7769"), 64)
	storeLng, _ := strconv.ParseFloat(getEnv("STORE_LNG", "106.7009"), 64)

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "pizza"),
		},
		Routing: RoutingConfig{
			BaseURL: getEnv("ROUTING_BASE_URL", "https://graphhopper.com/api/1"),
			APIKey:  getEnv("ROUTING_API_KEY", ""),
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		Store: StoreConfig{
			Lat: storeLat,
			Lng: storeLng,
		},
		Delivery: DeliveryConfig{
			RatePerKm: ratePerKm,
		},
		Telegram: TelegramConfig{
			NotifyToken: getEnv("NOTIFY_BOT_TOKEN", ""),
		},
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
