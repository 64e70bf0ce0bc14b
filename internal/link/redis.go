package link

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-view/internal/observability"
)

// RedisChannel receives telemetry from Redis pub/sub. Each event travels
// on a channel named after it, with the bare data as payload.
type RedisChannel struct {
	*Hub

	rdb    *redis.Client
	prefix string
	events []string
	logger *slog.Logger
	state  stateBox

	// OnConnect corre tras cada (re)suscripción.
	OnConnect func(ctx context.Context)

	RetryDelay time.Duration
}

func NewRedisChannel(rdb *redis.Client, prefix string, events []string, lg *slog.Logger) *RedisChannel {
	return &RedisChannel{
		Hub:    NewHub(),
		rdb:    rdb,
		prefix: prefix,
		events: events,
		logger: lg.With("component", "link", "channel", "redis"),

		RetryDelay: 2 * time.Second,
	}
}

func (rc *RedisChannel) Status() Status { return rc.state.status("redis") }

// Run blocks until ctx is cancelled. go-redis redials and resubscribes on
// the next Receive after a dropped connection; the first subscribe
// confirmation after a failure counts as a reconnect and fires OnConnect.
func (rc *RedisChannel) Run(ctx context.Context) error {
	names := make([]string, len(rc.events))
	for i, e := range rc.events {
		names[i] = rc.prefix + e
	}

	rc.state.set(StateConnecting, "")
	ps := rc.rdb.Subscribe(ctx, names...)
	defer ps.Close()
	// Receive no se despierta con ctx; cerrar el PubSub sí
	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	defer stop()

	down := true
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				rc.state.set(StateDisconnected, "")
				if !down {
					observability.ChannelDisconnects.WithLabelValues("redis").Inc()
				}
				rc.logger.Info("link: unsubscribed")
				return nil
			}
			if !down {
				down = true
				rc.state.set(StateDisconnected, "")
				observability.ChannelDisconnects.WithLabelValues("redis").Inc()
				rc.logger.Warn("link: connection lost, resubscribing...", "err", err)
			} else {
				rc.logger.Debug("link: subscribe failed", "err", err)
			}
			if !sleep(ctx, rc.RetryDelay) {
				rc.state.set(StateDisconnected, "")
				return nil
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" || !down {
				continue
			}
			down = false
			rc.state.set(StateConnected, rc.rdb.Options().Addr)
			observability.ChannelConnects.WithLabelValues("redis").Inc()
			rc.logger.Info("link: subscribed", "channels", names)
			if rc.OnConnect != nil {
				rc.OnConnect(ctx)
			}
		case *redis.Message:
			event := m.Channel[len(rc.prefix):]
			if !rc.Dispatch(event, []byte(m.Payload)) {
				rc.logger.Debug("link: no subscribers", "event", event)
			}
		}
	}
}

// Publish sends one event; used by the simulator and tests.
func Publish(ctx context.Context, rdb *redis.Client, prefix, event string, data []byte) error {
	if err := rdb.Publish(ctx, prefix+event, data).Err(); err != nil {
		return fmt.Errorf("link: publish %s: %w", event, err)
	}
	return nil
}
