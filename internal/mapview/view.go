// Package mapview owns the live map state for one mounted map. Every
// mutation is queued onto a single goroutine that drains what is pending
// and then runs one reconciliation pass.
package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fleet-view/internal/fleet"
	"fleet-view/internal/observability"
	"fleet-view/internal/optimizer"
	"fleet-view/internal/overlay"
	"fleet-view/internal/reconcile"
	"fleet-view/internal/render"
	"fleet-view/internal/selection"
	"fleet-view/internal/store"
	"fleet-view/internal/telemetry"
	"fleet-view/internal/viewport"
)

type Config struct {
	Refit     viewport.Policy
	Padding   int
	QueueSize int
}

// pending acumula lo que cambió entre dos pasadas.
type pending struct {
	events     int
	structural bool
	moved      bool
	overlay    bool
	after      []func()
}

type event func(v *View, p *pending)

type View struct {
	base   *slog.Logger
	logger *slog.Logger

	store     *store.VehicleStore
	markers   *reconcile.Reconciler
	overlay   *overlay.Builder
	viewport  *viewport.Controller
	selection *selection.Controller
	optimizer optimizer.Optimizer

	events chan event
	quit   chan struct{}
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	detach  []func()
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	selected atomic.Pointer[fleet.VehicleID]

	// sólo los toca el loop
	orders     []fleet.Order
	result     fleet.OptimizationResult
	optIssued  uint64
	optApplied uint64
}

// New mounts a view on r and starts its event loop. opt may be nil.
func New(r render.Renderer, opt optimizer.Optimizer, cfg Config, lg *slog.Logger) *View {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Refit == "" {
		cfg.Refit = viewport.PolicyStructural
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		base:      lg,
		logger:    lg.With("component", "mapview"),
		store:     store.NewVehicleStore(),
		markers:   reconcile.New(r, lg),
		overlay:   overlay.New(r, lg),
		viewport:  viewport.New(r, cfg.Refit, cfg.Padding, lg),
		selection: selection.New(r, lg),
		optimizer: opt,
		events:    make(chan event, cfg.QueueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go v.run()
	return v
}

// Attach subscribes the view to telemetry channels. Close cancels the
// subscriptions before anything else.
func (v *View) Attach(subs ...telemetry.Subscriber) *telemetry.Ingestor {
	in := telemetry.New(v, v.base)
	detach := in.Attach(subs...)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		detach()
		return in
	}
	v.detach = append(v.detach, detach)
	return in
}

func (v *View) submit(ev event) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return fleet.ErrClosed
	}
	select {
	case v.events <- ev:
		return nil
	case <-v.quit:
		return fleet.ErrClosed
	}
}

// ApplyUpdate queues a telemetry patch.
func (v *View) ApplyUpdate(p fleet.VehiclePatch) error {
	return v.submit(func(v *View, pd *pending) {
		pd.track(v.store.Upsert(p))
	})
}

// Resync queues a full snapshot that replaces the store.
func (v *View) Resync(vehicles []fleet.Vehicle) error {
	return v.submit(func(v *View, pd *pending) {
		for _, c := range v.store.Replace(vehicles) {
			pd.track(c)
		}
		observability.Resyncs.Inc()
	})
}

// RemoveVehicle drops a vehicle with its marker and, if it was selected,
// the selection. It waits for the loop so unknown ids are reported.
func (v *View) RemoveVehicle(ctx context.Context, id fleet.VehicleID) error {
	reply := make(chan error, 1)
	err := v.submit(func(v *View, pd *pending) {
		c, ok := v.store.Remove(id)
		if !ok {
			reply <- fmt.Errorf("remove vehicle %d: %w", id, fleet.ErrUnknownVehicle)
			return
		}
		pd.track(c)
		reply <- nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetOrders replaces the order book and rebuilds overlays.
func (v *View) SetOrders(orders []fleet.Order) error {
	cp := append([]fleet.Order(nil), orders...)
	return v.submit(func(v *View, pd *pending) {
		v.orders = cp
		pd.overlay = true
	})
}

// Select focuses a vehicle. It waits for the loop so unknown ids are
// reported to the caller.
func (v *View) Select(ctx context.Context, id fleet.VehicleID) error {
	reply := make(chan error, 1)
	err := v.submit(func(v *View, _ *pending) {
		reply <- v.selection.Select(v.store.Snapshot(), id)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *View) ClearSelection() error {
	return v.submit(func(v *View, _ *pending) { v.selection.Clear() })
}

// Selected returns the selection as of the last pass.
func (v *View) Selected() *fleet.VehicleID {
	if id := v.selected.Load(); id != nil {
		cp := *id
		return &cp
	}
	return nil
}

// Snapshot reads the store directly; it is safe from any goroutine.
func (v *View) Snapshot() store.Snapshot {
	return v.store.Snapshot()
}

// Sync blocks until every event queued before it has been applied and
// rendered.
func (v *View) Sync(ctx context.Context) error {
	done := make(chan struct{})
	err := v.submit(func(_ *View, pd *pending) {
		pd.after = append(pd.after, func() { close(done) })
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Optimize builds a request from the current orders and vehicles and runs
// it off the loop. The result is applied as a later event; a response
// older than one already applied is discarded. The returned error is the
// optimizer outcome; failures leave the overlays untouched.
func (v *View) Optimize(ctx context.Context) error {
	if v.optimizer == nil {
		return fmt.Errorf("optimize: %w", optimizer.ErrNotConfigured)
	}
	reply := make(chan error, 1)
	err := v.submit(func(v *View, _ *pending) { v.startOptimization(reply) })
	if err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *View) startOptimization(reply chan<- error) {
	v.optIssued++
	seq := v.optIssued
	req := optimizer.BuildRequest(v.orders, v.store.Snapshot().Vehicles())
	v.logger.Info("optimization requested", "seq", seq, "orders", len(req.Orders), "vehicles", len(req.Vehicles))

	v.workers.Add(1)
	go func() {
		defer v.workers.Done()
		res, err := v.optimizer.Optimize(v.ctx, req)
		if err != nil {
			v.logger.Warn("optimization failed", "seq", seq, "err", err)
			observability.OptimizationRequests.WithLabelValues("failed").Inc()
			reply <- err
			return
		}
		reply <- v.submit(func(v *View, pd *pending) { v.applyResult(seq, res, pd) })
	}()
}

func (v *View) applyResult(seq uint64, res fleet.OptimizationResult, pd *pending) {
	if seq < v.optApplied {
		v.logger.Info("optimization result discarded", "seq", seq, "applied", v.optApplied)
		observability.OptimizationRequests.WithLabelValues("stale").Inc()
		return
	}
	v.optApplied = seq
	v.result = res
	pd.overlay = true
	observability.OptimizationRequests.WithLabelValues("ok").Inc()
}

func (p *pending) track(c store.Change) {
	if c.Structural() {
		p.structural = true
	}
	if c.Moved {
		p.moved = true
	}
}

func (v *View) run() {
	defer close(v.done)
	for {
		select {
		case <-v.quit:
			return
		case ev := <-v.events:
			var pd pending
			v.apply(ev, &pd)
		drain:
			for {
				select {
				case ev := <-v.events:
					v.apply(ev, &pd)
				default:
					break drain
				}
			}
			v.pass(&pd)
		}
	}
}

func (v *View) apply(ev event, pd *pending) {
	pd.events++
	ev(v, pd)
}

// pass reconcilia marcadores, sigue la selección y ajusta la cámara.
func (v *View) pass(pd *pending) {
	start := time.Now()
	defer observability.ObservePassLatency(start)

	snap := v.store.Snapshot()
	v.selection.Prune(snap)
	v.markers.Reconcile(snap, v.selection.Selected())

	if pd.overlay {
		v.overlay.Rebuild(v.result.Routes, v.result.Unassigned, v.orders)
		pd.structural = true
	}
	if pd.structural {
		v.viewport.Bump()
	}

	followed := v.selection.Follow(snap, v.markers)
	points := append(snap.Positions(), v.overlay.Points()...)
	v.viewport.Update(points, pd.moved, followed)

	v.selected.Store(v.selection.Selected())
	observability.ReconcilePasses.Inc()
	observability.CoalescedEvents.Observe(float64(pd.events))

	for _, fn := range pd.after {
		fn()
	}
}

// Close unmounts the view: telemetry is unsubscribed, the loop stopped and
// every marker and overlay handle destroyed before it returns.
func (v *View) Close() {
	v.once.Do(func() {
		v.cancel()
		close(v.quit)
		v.mu.Lock()
		v.closed = true
		detach := v.detach
		v.detach = nil
		v.mu.Unlock()
		for _, d := range detach {
			d()
		}

		<-v.done
		v.workers.Wait()

		v.markers.Close()
		v.overlay.Clear()
		v.selected.Store(nil)
		v.logger.Info("map view closed")
	})
}
