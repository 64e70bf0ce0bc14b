package fleet

import "errors"

var (
	ErrMalformedTelemetry = errors.New("malformed telemetry event")
	ErrUnknownVehicle     = errors.New("unknown vehicle")
	ErrClosed             = errors.New("map view closed")
)
