package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"go.uber.org/zap"

	"musicstore/internal/config"
	"musicstore/internal/events"
	"musicstore/internal/http/handlers"
	applog "musicstore/internal/log"
	"musicstore/internal/ratestore"
	"musicstore/internal/repos"
)

func main() {
	cfg := config.Load()

	if err := applog.Init(cfg.LogFile); err != nil {
		applog.L().Warn("log.file.open", zap.String("file", cfg.LogFile), zap.Error(err))
	}
	defer applog.Sync()
	log := applog.L()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("db.open", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	if cfg.CartCookieKey == "" {
		cfg.CartCookieKey = encryptcookie.GenerateKey()
		log.Warn("cart.key.generated", zap.String("hint", "set CART_COOKIE_KEY so carts survive restarts"))
	}

	var storage fiber.Storage
	if cfg.RedisURL != "" {
		rs, err := ratestore.New(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis.connect", zap.Error(err))
		}
		defer rs.Close()
		storage = rs
	}

	var pub events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("events.kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer pub.Close()

	app := handlers.NewApp(db, handlers.AppOptions{
		Config:          cfg,
		Publisher:       pub,
		Storage:         storage,
		ReloadTemplates: true,
	})

	log.Info("http.listen", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("http.listen", zap.Error(err))
	}
}
