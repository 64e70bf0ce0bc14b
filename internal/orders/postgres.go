// Package orders reads the order book used for overlays and optimization.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleet-view/internal/fleet"
)

// Source lista las órdenes actuales. Solo lectura.
type Source interface {
	List(ctx context.Context) ([]fleet.Order, error)
}

func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("orders: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("orders: verify postgres connection: %w", err)
	}
	return db, nil
}

type PostgresSource struct {
	DB *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{DB: db}
}

func (s *PostgresSource) List(ctx context.Context) ([]fleet.Order, error) {
	if s.DB == nil {
		return nil, errors.New("orders: db is nil")
	}

	q := `
	SELECT id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng
	FROM orders
	ORDER BY id;
	`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	var out []fleet.Order
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.pickupLat, &r.pickupLng, &r.dropoffLat, &r.dropoffLng); err != nil {
			return nil, fmt.Errorf("list orders: scan rows: %w", err)
		}
		out = append(out, r.order())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: iterate rows: %w", err)
	}
	return out, nil
}

type row struct {
	id                     int64
	pickupLat, pickupLng   sql.NullFloat64
	dropoffLat, dropoffLng sql.NullFloat64
}

// order keeps an endpoint only when both of its coordinates are set.
func (r row) order() fleet.Order {
	return fleet.Order{
		ID:      fleet.OrderID(r.id),
		Pickup:  point(r.pickupLat, r.pickupLng),
		Dropoff: point(r.dropoffLat, r.dropoffLng),
	}
}

func point(lat, lng sql.NullFloat64) *fleet.LatLng {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &fleet.LatLng{Lat: lat.Float64, Lng: lng.Float64}
}

// Static is a fixed order list, used when no database is configured.
type Static []fleet.Order

func (s Static) List(context.Context) ([]fleet.Order, error) {
	return append([]fleet.Order(nil), s...), nil
}
