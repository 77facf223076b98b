// Package events fans job updates out to SSE subscribers, in process or
// through Redis pub/sub when several API instances run.
package events

import (
	"context"
	"errors"
	"sync"

	"stylist/internal/entity"
)

type Bus interface {
	Publish(ctx context.Context, event entity.JobEvent) error
	// StartForwarder delivers every published event to onEvent until ctx ends.
	StartForwarder(ctx context.Context, onEvent func(entity.JobEvent)) error
	Close() error
}

// LocalBus delivers events synchronously to forwarders in the same process.
type LocalBus struct {
	mu         sync.RWMutex
	nextID     int
	forwarders map[int]func(entity.JobEvent)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{forwarders: make(map[int]func(entity.JobEvent))}
}

func (b *LocalBus) Publish(_ context.Context, event entity.JobEvent) error {
	b.mu.RLock()
	targets := make([]func(entity.JobEvent), 0, len(b.forwarders))
	for _, fn := range b.forwarders {
		targets = append(targets, fn)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}
	return nil
}

func (b *LocalBus) StartForwarder(ctx context.Context, onEvent func(entity.JobEvent)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.forwarders[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.forwarders, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.forwarders = make(map[int]func(entity.JobEvent))
	b.mu.Unlock()
	return nil
}

var _ Bus = (*LocalBus)(nil)
