package distributed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/shard-runtime/closure"
	"github.com/wippyai/shard-runtime/errors"
	"github.com/wippyai/shard-runtime/future"
	"github.com/wippyai/shard-runtime/shard"
)

// Service is the per-shard half of a distributed service. Stop runs on
// the instance's own shard during shutdown.
type Service interface {
	Stop(ctx context.Context) error
}

// Factory constructs one shard's instance. It runs as a task on the
// shard the instance will live on.
type Factory[S Service] func(ctx context.Context) (S, error)

// Distributed tracks one service instance per participating shard.
// Instances never migrate; each one is only touched from its own
// shard's tasks.
type Distributed[S Service] struct {
	rt        *shard.Runtime
	instances []S
	present   []bool

	mu      sync.Mutex
	stopped bool
}

// call runs fn on the given shard, inline when the caller is already
// on it, so services can be managed from inside shard tasks without
// deadlocking on their own queue.
func call[R any](ctx context.Context, rt *shard.Runtime, shardID int, fn func(ctx context.Context) (R, error)) *future.Future[R] {
	if self, ok := shard.FromContext(ctx); ok && self.ID() == shardID {
		v, err := fn(ctx)
		if err != nil {
			return future.Rejected[R](err)
		}
		return future.Resolved(v)
	}
	return shard.Submit(rt, shardID, fn)
}

// Start constructs one instance per shard by running the factory on
// every shard. Start is all-or-nothing: if any factory fails, every
// instance that was constructed is stopped and dropped, and the first
// failure (by shard index) is returned.
func Start[S Service](ctx context.Context, rt *shard.Runtime, factory Factory[S]) (*Distributed[S], error) {
	d := &Distributed[S]{
		rt:        rt,
		instances: make([]S, rt.Count()),
		present:   make([]bool, rt.Count()),
	}

	futs := make([]*future.Future[S], rt.Count())
	for i := 0; i < rt.Count(); i++ {
		futs[i] = call(ctx, rt, i, factory)
	}

	var firstErr error
	firstShard := -1
	for i, f := range futs {
		v, err := f.Await(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr, firstShard = err, i
			}
			continue
		}
		d.instances[i] = v
		d.present[i] = true
	}

	if firstErr != nil {
		Logger().Warn("distributed start failed, rolling back",
			zap.Int("shard", firstShard),
			zap.Error(firstErr))
		d.rollback(ctx)
		return nil, errors.FactoryFailed(firstShard, firstErr)
	}

	Logger().Debug("distributed service started", zap.Int("shards", rt.Count()))
	return d, nil
}

// StartSingle constructs a single instance on the calling shard, or on
// shard 0 when called from outside the runtime. The service is
// discoverable from any shard through MapSingle.
func StartSingle[S Service](ctx context.Context, rt *shard.Runtime, factory Factory[S]) (*Distributed[S], error) {
	home := 0
	if self, ok := shard.FromContext(ctx); ok {
		home = self.ID()
	}

	d := &Distributed[S]{
		rt:        rt,
		instances: make([]S, rt.Count()),
		present:   make([]bool, rt.Count()),
	}

	v, err := call(ctx, rt, home, factory).Await(ctx)
	if err != nil {
		return nil, errors.FactoryFailed(home, err)
	}
	d.instances[home] = v
	d.present[home] = true
	return d, nil
}

// StartFromClosure is Start with the factory supplied as an opaque
// closure. The closure is invoked once per shard and released exactly
// once, whether or not start succeeds.
func StartFromClosure(ctx context.Context, rt *shard.Runtime, c closure.Closure) (*Distributed[Service], error) {
	cb := closure.NewCallback(c)
	defer cb.Release()

	return Start(ctx, rt, func(ctx context.Context) (Service, error) {
		v, err := cb.Call(ctx)
		if err != nil {
			return nil, err
		}
		svc, ok := v.(Service)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseService, "factory closure did not return a service")
		}
		return svc, nil
	})
}

func (d *Distributed[S]) rollback(ctx context.Context) {
	for i := range d.instances {
		if !d.present[i] {
			continue
		}
		i := i
		inst := d.instances[i]
		if _, err := call(ctx, d.rt, i, func(ctx context.Context) (future.Void, error) {
			return future.Void{}, inst.Stop(ctx)
		}).Await(ctx); err != nil {
			Logger().Warn("rollback stop failed", zap.Int("shard", i), zap.Error(err))
		}
		d.drop(i)
	}
}

func (d *Distributed[S]) drop(i int) {
	if dr, ok := any(d.instances[i]).(closure.Dropper); ok {
		dr.Drop()
	}
	var zero S
	d.instances[i] = zero
	d.present[i] = false
}

// Local returns the calling shard's instance.
func (d *Distributed[S]) Local(ctx context.Context) (S, error) {
	var zero S

	self, ok := shard.FromContext(ctx)
	if !ok {
		return zero, errors.NotRunning("local service instance")
	}

	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return zero, errors.NotRunning("local service instance")
	}

	if !d.present[self.ID()] {
		return zero, errors.New(errors.PhaseService, errors.KindNotFound).
			Shard(self.ID()).
			Detail("no service instance on this shard").
			Build()
	}
	return d.instances[self.ID()], nil
}

// Stop runs every instance's Stop exactly once, waits for all of them,
// then drops the instances. Stopping twice is a reported error.
func (d *Distributed[S]) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return errors.DoubleStop()
	}
	d.stopped = true
	d.mu.Unlock()

	futs := make([]*future.Future[future.Void], 0, len(d.instances))
	for i := range d.instances {
		if !d.present[i] {
			continue
		}
		inst := d.instances[i]
		futs = append(futs, call(ctx, d.rt, i, func(ctx context.Context) (future.Void, error) {
			return future.Void{}, inst.Stop(ctx)
		}))
	}

	var firstErr error
	for _, f := range futs {
		if _, err := f.Await(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Stops all ran; drops follow.
	for i := range d.instances {
		if d.present[i] {
			d.drop(i)
		}
	}

	Logger().Debug("distributed service stopped", zap.Error(firstErr))
	return firstErr
}

func (d *Distributed[S]) guard() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return errors.NotRunning("distributed service")
	}
	return nil
}

// MapSingle invokes fn against the instance on the given shard and
// resolves with its result.
func MapSingle[S Service, R any](ctx context.Context, d *Distributed[S], shardID int, fn func(ctx context.Context, s S) (R, error)) *future.Future[R] {
	if err := d.guard(); err != nil {
		return future.Rejected[R](err)
	}
	if shardID < 0 || shardID >= len(d.instances) {
		return future.Rejected[R](errors.InvalidShard(shardID, len(d.instances)))
	}
	if !d.present[shardID] {
		return future.Rejected[R](errors.New(errors.PhaseService, errors.KindNotFound).
			Shard(shardID).
			Detail("no service instance on shard").
			Build())
	}

	inst := d.instances[shardID]
	return call(ctx, d.rt, shardID, func(ctx context.Context) (R, error) {
		return fn(ctx, inst)
	})
}

// MapAll invokes fn against every shard's instance and resolves with
// the results in shard order.
func MapAll[S Service, R any](ctx context.Context, d *Distributed[S], fn func(ctx context.Context, s S) (R, error)) *future.Future[[]R] {
	return mapShards(ctx, d, fn, -1)
}

// MapOthers is MapAll excluding the calling shard. The results keep
// shard order with the caller's slot skipped.
func MapOthers[S Service, R any](ctx context.Context, d *Distributed[S], fn func(ctx context.Context, s S) (R, error)) *future.Future[[]R] {
	self := -1
	if s, ok := shard.FromContext(ctx); ok {
		self = s.ID()
	}
	return mapShards(ctx, d, fn, self)
}

func mapShards[S Service, R any](ctx context.Context, d *Distributed[S], fn func(ctx context.Context, s S) (R, error), skip int) *future.Future[[]R] {
	if err := d.guard(); err != nil {
		return future.Rejected[[]R](err)
	}

	futs := make([]*future.Future[R], 0, len(d.instances))
	for i := range d.instances {
		if i == skip || !d.present[i] {
			continue
		}
		inst := d.instances[i]
		futs = append(futs, call(ctx, d.rt, i, func(ctx context.Context) (R, error) {
			return fn(ctx, inst)
		}))
	}
	return future.All(futs...)
}
