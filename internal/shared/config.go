package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	HTTPTimeout time.Duration
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration

	// Scan knobs.
	RoomIDs         []string
	FixturePath     string
	BatchSize       int
	Workers         int
	LookaheadMonths int
	PaneRetries     int
	PaneBackoff     time.Duration
	PriceTolerance  float64
	RoomsPerSecond  float64
}

func Load() Config {
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
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		HTTPTimeout: time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayscan?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		RoomIDs:         splitIDs(env("SCAN_ROOM_IDS", "")),
		FixturePath:     env("SCAN_FIXTURE_PATH", ""),
		BatchSize:       atoi("SCAN_BATCH_SIZE", 5),
		Workers:         atoi("SCAN_WORKERS", 5),
		LookaheadMonths: atoi("SCAN_LOOKAHEAD_MONTHS", 6),
		PaneRetries:     atoi("SCAN_PANE_RETRIES", 3),
		PaneBackoff:     time.Duration(atoi("SCAN_PANE_BACKOFF_MS", 250)) * time.Millisecond,
		PriceTolerance:  atof("SCAN_PRICE_TOLERANCE", 0.10),
		RoomsPerSecond:  atof("SCAN_ROOMS_PER_SECOND", 0),
	}
	if len(c.RoomIDs) == 0 {
		log.Warn().Msg("SCAN_ROOM_IDS is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
