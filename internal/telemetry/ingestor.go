// Package telemetry turns channel events into store mutations.
package telemetry

import (
	"encoding/json"
	"errors"
	"log/slog"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
)

const (
	EventVehicleUpdate = "vehicle_update"
	EventVehicleResync = "vehicle_resync"
)

// Sink applies decoded telemetry. MapView implements it.
type Sink interface {
	ApplyUpdate(p fleet.VehiclePatch) error
	Resync(vehicles []fleet.Vehicle) error
}

// Subscriber is a named-event channel with cancellable subscriptions.
type Subscriber interface {
	Subscribe(event string, handler func(data []byte)) (cancel func())
}

type Ingestor struct {
	sink   Sink
	logger *slog.Logger
}

func New(sink Sink, lg *slog.Logger) *Ingestor {
	return &Ingestor{sink: sink, logger: lg.With("component", "telemetry")}
}

// Attach subscribes to both telemetry events on every channel and returns
// one function that cancels all of them.
func (in *Ingestor) Attach(subs ...Subscriber) (detach func()) {
	cancels := make([]func(), 0, 2*len(subs))
	for _, s := range subs {
		cancels = append(cancels,
			s.Subscribe(EventVehicleUpdate, in.HandleUpdate),
			s.Subscribe(EventVehicleResync, in.HandleResync),
		)
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (in *Ingestor) HandleUpdate(data []byte) {
	u, err := DecodeUpdate(data)
	if err != nil {
		in.logger.Warn("telemetry: dropping event", "event", EventVehicleUpdate, "err", err)
		observability.TelemetryEvents.WithLabelValues("malformed").Inc()
		return
	}
	if len(u.Ignored) > 0 {
		in.logger.Warn("telemetry: ignored fields", "id", u.Patch.ID, "fields", u.Ignored)
	}
	in.forward(in.sink.ApplyUpdate(u.Patch))
}

func (in *Ingestor) HandleResync(data []byte) {
	vs, skipped, err := DecodeSnapshot(data)
	if err != nil {
		in.logger.Warn("telemetry: dropping event", "event", EventVehicleResync, "err", err)
		observability.TelemetryEvents.WithLabelValues("malformed").Inc()
		return
	}
	in.resync(vs, skipped)
}

// ResyncRecords applies a snapshot already split into records, as loaded
// from the Redis snapshot on reconnect.
func (in *Ingestor) ResyncRecords(records []json.RawMessage) {
	vs, skipped, _ := DecodeRecords(records)
	in.resync(vs, skipped)
}

func (in *Ingestor) resync(vs []fleet.Vehicle, skipped int) {
	if skipped > 0 {
		in.logger.Warn("telemetry: resync skipped malformed records", "skipped", skipped)
		observability.TelemetryEvents.WithLabelValues("malformed").Add(float64(skipped))
	}
	in.logger.Info("telemetry: resync", "vehicles", len(vs))
	in.forward(in.sink.Resync(vs))
}

func (in *Ingestor) forward(err error) {
	switch {
	case err == nil:
		observability.TelemetryEvents.WithLabelValues("applied").Inc()
	case errors.Is(err, fleet.ErrClosed):
		observability.TelemetryEvents.WithLabelValues("dropped").Inc()
	default:
		in.logger.Error("telemetry: forward failed", "err", err)
		observability.TelemetryEvents.WithLabelValues("dropped").Inc()
	}
}
