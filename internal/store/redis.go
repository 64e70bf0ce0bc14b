package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-view/internal/fleet"
)

const (
	vehicleSetKey = "fleet:vehicles"
	vehicleTTL    = 24 * time.Hour
)

func vehicleKey(id fleet.VehicleID) string {
	return "fleet:vehicle:" + strconv.FormatInt(int64(id), 10)
}

// RedisSnapshot lee el último estado conocido de la flota que el backend
// deja en Redis. Se usa para resincronizar al reconectar el canal.
type RedisSnapshot struct {
	rdb *redis.Client
}

func NewRedisSnapshot(rdb *redis.Client) *RedisSnapshot {
	return &RedisSnapshot{rdb: rdb}
}

// Dial abre el cliente y verifica la conexión con un PING.
func Dial(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Load returns every stored vehicle record as raw JSON, in id-set order.
// Keys that expired between SMEMBERS and MGET are skipped.
func (r *RedisSnapshot) Load(ctx context.Context) ([]json.RawMessage, error) {
	ids, err := r.rdb.SMembers(ctx, vehicleSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: smembers: %w", err)
	}
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "fleet:vehicle:"+id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: mget: %w", err)
	}

	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, json.RawMessage(s))
	}
	return out, nil
}

// Save writes one vehicle record and registers its id. The simulator and
// tests use it; the map view itself never writes.
func (r *RedisSnapshot) Save(ctx context.Context, v fleet.Vehicle) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("save vehicle %d: encode: %w", v.ID, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, vehicleKey(v.ID), b, vehicleTTL)
	pipe.SAdd(ctx, vehicleSetKey, strconv.FormatInt(int64(v.ID), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save vehicle %d: %w", v.ID, err)
	}
	return nil
}
