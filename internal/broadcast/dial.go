package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Garsondee/Pixel-Planet/internal/store"
)

const redisPingTimeout = 2 * time.Second

// DialConfig selects and configures a transport.
type DialConfig struct {
	RedisURL     string
	Channel      string
	Origin       string
	PollInterval time.Duration
}

// Dial returns a RedisTransport when RedisURL is set and the server answers,
// otherwise the store signal fallback. It never fails.
func Dial(ctx context.Context, cfg DialConfig, s store.Store, log *slog.Logger) Transport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.RedisURL != "" {
		t, err := dialRedis(ctx, cfg)
		if err == nil {
			log.Info("broadcast transport selected", "transport", "redis", "channel", cfg.Channel)
			return t
		}
		log.Warn("redis unavailable, falling back to store signal", "err", err)
	}
	log.Info("broadcast transport selected", "transport", "store-signal", "poll", cfg.PollInterval)
	return NewSignalTransport(s, cfg.Origin, cfg.PollInterval, log)
}

func dialRedis(ctx context.Context, cfg DialConfig) (*RedisTransport, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisTransport(client, cfg.Channel), nil
}
