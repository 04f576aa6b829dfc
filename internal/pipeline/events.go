package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// listeners is a set of subscribers that can be removed with the handle returned by add.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = map[int]func(T){}
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
		})
	}
}

// snapshot returns the current subscribers in subscription order.
func (l *listeners[T]) snapshot() []func(T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), len(ids))
	for i, id := range ids {
		fns[i] = l.fns[id]
	}
	return fns
}

func (l *listeners[T]) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = nil
}

// dispatcher delivers events on its own goroutine in the order they were queued. Queuing never blocks, so
// subscribers may call back into the controller.
type dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		mu:     sync.Mutex{},
		queue:  nil,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		once:   sync.Once{},
		logger: logger,
	}
	go d.run()
	return d
}

func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		d.mu.Lock()
		queue := d.queue
		d.queue = nil
		d.mu.Unlock()
		for _, fn := range queue {
			select {
			case <-d.done:
				return
			default:
			}
			d.call(fn)
		}
	}
}

func (d *dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.LogAttrs(context.Background(), slog.LevelError, "pipeline listener panicked", slog.Any("panic", r))
		}
	}()
	fn()
}

func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.done) })
}

func deliver[T any](l *listeners[T], v T) func() {
	return func() {
		for _, fn := range l.snapshot() {
			fn(v)
		}
	}
}
