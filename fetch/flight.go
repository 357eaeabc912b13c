package fetch

import (
	"context"

	"github.com/kbukum/fetchguard/errors"
)

// flight is the shared context of one deduplicated call. It is cancelled
// once every waiter has left, so an abandoned call stops at its next
// suspension point.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// shared runs execute once per key among concurrent callers. Each caller
// waits on its own ctx; leaving early does not disturb the others.
func (o *Orchestrator[T]) shared(ctx context.Context, req Request, op Operation[T]) (T, error) {
	var zero T

	o.mu.Lock()
	f, ok := o.flights[req.Key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		o.flights[req.Key] = f
	}
	f.waiters++
	ch := o.group.DoChan(req.Key, func() (any, error) {
		return o.execute(f.ctx, req, op)
	})
	o.mu.Unlock()

	select {
	case <-ctx.Done():
		o.leave(req.Key, f)
		return zero, errors.Cancelled(ctx.Err())
	case res := <-ch:
		o.leave(req.Key, f)
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// leave drops one waiter. The last one out cancels the flight and makes the
// group forget the key so the next caller starts afresh.
func (o *Orchestrator[T]) leave(key string, f *flight) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if o.flights[key] == f {
		delete(o.flights, key)
		o.group.Forget(key)
	}
}
