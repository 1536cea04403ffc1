package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	DBDriver      string // sqlite | postgres
	DBDSN         string
	MediaDir      string
	LogFile       string
	CartCookieKey string // base64, 32 bytes; empty means generate per process
	CookieSecure  bool
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "musicstore.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	} // sqlite file in project root
	media := os.Getenv("MEDIA_DIR")
	if media == "" {
		media = "./web/media"
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./musicstore.log"
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "orders.placed"
	}
	secure, _ := strconv.ParseBool(os.Getenv("COOKIE_SECURE"))

	return Config{
		Port:          port,
		DBDriver:      driver,
		DBDSN:         dsn,
		MediaDir:      media,
		LogFile:       logFile,
		CartCookieKey: os.Getenv("CART_COOKIE_KEY"),
		CookieSecure:  secure,
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:    topic,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
