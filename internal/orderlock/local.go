package orderlock

import (
	"context"
	"sync"
)

// LocalLocker is the single-instance locker used when Redis is not
// configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*entry{}}
}

func (l *LocalLocker) Lock(ctx context.Context, orderRef string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderRef]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[orderRef] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(orderRef, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(orderRef, e)
		})
	}, nil
}

func (l *LocalLocker) drop(orderRef string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, orderRef)
	}
}
