package shared

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	MetricsAddr   string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	GTOBase       string
	GTOKey        string
	ScanRPS       float64
	EnrichWorkers int
	DetailTTLSec  int
	MaxScans      int
	HistoryTTLSec int
}

func Load() Config {
	// Local .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		RedisAddr:     env("REDIS_ADDR", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPass:     env("REDIS_PASSWORD", ""),
		GTOBase:       env("GTO_BASE_URL", "https://api.gto.ua/api/v3"),
		GTOKey:        env("GTO_API_KEY", ""),
		ScanRPS:       atof("SCAN_RPS", 5),
		EnrichWorkers: atoi("ENRICH_WORKERS", 4),
		DetailTTLSec:  atoi("DETAIL_TTL_SECONDS", 900),
		MaxScans:      atoi("MAX_SCANS", 50),
		HistoryTTLSec: atoi("HISTORY_TTL_SECONDS", 7200),
	}
	if c.GTOKey == "" {
		log.Warn().Msg("GTO_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
