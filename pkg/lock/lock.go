// Package lock — межпроцессные блокировки для секций check-then-act.
package lock

import (
	"context"
	"errors"
	"time"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker берёт эксклюзивную блокировку до истечения ctx.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Nop — для одиночного процесса без общего хранилища.
type Nop struct{}

func (Nop) Lock(context.Context) (func(), error) { return func() {}, nil }

// WithWait ограничивает только ожидание захвата, не время владения.
func WithWait(l Locker, wait time.Duration) Locker {
	if wait <= 0 {
		return l
	}
	return waitLocker{l: l, wait: wait}
}

type waitLocker struct {
	l    Locker
	wait time.Duration
}

func (w waitLocker) Lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, w.wait)
	defer cancel()
	return w.l.Lock(ctx)
}
