package notifications

import (
	"fmt"
	"log/slog"

	"github.com/SscSPs/client_records_app/internal/platform/config"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// NewFromConfig builds a CompositePublisher for every backend in cfg.Backends.
// The returned close function releases Redis and asynq connections and is always safe to call.
func NewFromConfig(cfg config.NotifyConfig, analytics eventCapturer) (*CompositePublisher, func(), error) {
	composite := NewCompositePublisher()
	var rdb *redis.Client
	var taskClient *asynq.Client

	closeAll := func() {
		if taskClient != nil {
			if err := taskClient.Close(); err != nil {
				slog.Warn("Failed to close asynq client", slog.String("error", err.Error()))
			}
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				slog.Warn("Failed to close Redis client", slog.String("error", err.Error()))
			}
		}
	}

	if cfg.Uses(config.NotifyRedis) || cfg.Uses(config.NotifyAsynq) {
		client, err := ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, closeAll, err
		}
		rdb = client
	}

	for _, backend := range cfg.Backends {
		switch backend {
		case config.NotifyLog:
			composite.Add(LogPublisher{})
		case config.NotifyRedis:
			composite.Add(NewRedisPublisher(rdb, cfg.RedisKey))
		case config.NotifyAsynq:
			if taskClient == nil {
				taskClient = NewAsynqClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			}
			composite.Add(NewAsynqPublisher(taskClient))
		case config.NotifyPosthog:
			if analytics == nil || !analytics.IsInitialized() {
				closeAll()
				return nil, func() {}, fmt.Errorf("notify backend %q requires POSTHOG_API_KEY", backend)
			}
			composite.Add(NewPosthogPublisher(analytics))
		default:
			closeAll()
			return nil, func() {}, fmt.Errorf("unknown notify backend %q", backend)
		}
	}

	slog.Info("Notification publishers configured", slog.Any("backends", cfg.Backends))
	return composite, closeAll, nil
}
