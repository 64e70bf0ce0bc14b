// fleetsim publica telemetría simulada en Redis para probar el mapa sin
// vehículos reales.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fleet-view/internal/config"
	"fleet-view/internal/fleet"
	"fleet-view/internal/link"
	"fleet-view/internal/observability"
	"fleet-view/internal/store"
	"fleet-view/internal/telemetry"
)

var statuses = []fleet.Status{fleet.StatusIdle, fleet.StatusEnroute, fleet.StatusCharging, fleet.StatusMaintenance}

func main() {
	count := flag.Int("vehicles", 5, "number of simulated vehicles")
	every := flag.Duration("every", time.Second, "publish interval")
	lat := flag.Float64("lat", 19.4326, "center latitude")
	lng := flag.Float64("lng", -99.1332, "center longitude")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel).With("component", "fleetsim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := store.Dial(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("redis dial failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	snap := store.NewRedisSnapshot(rdb)

	fleetState := make([]fleet.Vehicle, *count)
	for i := range fleetState {
		la := *lat + (rand.Float64()-0.5)*0.05
		lo := *lng + (rand.Float64()-0.5)*0.05
		fleetState[i] = fleet.Vehicle{
			ID:         fleet.VehicleID(i + 1),
			Name:       fmt.Sprintf("Unidad %d", i+1),
			Status:     statuses[i%len(statuses)],
			CurrentLat: &la,
			CurrentLng: &lo,
		}
	}

	t := time.NewTicker(*every)
	defer t.Stop()
	logger.Info("simulating", "vehicles", *count, "every", every.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for i := range fleetState {
			v := &fleetState[i]
			*v.CurrentLat += (rand.Float64() - 0.5) * 0.001
			*v.CurrentLng += (rand.Float64() - 0.5) * 0.001

			b, err := json.Marshal(v)
			if err != nil {
				logger.Error("encode failed", "id", v.ID, "error", err)
				continue
			}
			if err := snap.Save(ctx, *v); err != nil {
				logger.Warn("snapshot save failed", "id", v.ID, "error", err)
			}
			if err := link.Publish(ctx, rdb, cfg.RedisPrefix, telemetry.EventVehicleUpdate, b); err != nil {
				logger.Warn("publish failed", "id", v.ID, "error", err)
			}
		}
	}
}
