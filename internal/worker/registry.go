// Package worker maps queue types to handlers and runs claimed jobs.
package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/joshu-sajeev/delayedjobs/common"
)

// HandlerFunc runs one job. It reports success with (true, nil); any other
// result counts as a failed attempt.
type HandlerFunc func(ctx context.Context, payloadRef string) (bool, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds fn to queueType. Each queue type can be bound once.
func (r *Registry) Register(queueType string, fn HandlerFunc) error {
	if strings.TrimSpace(queueType) == "" {
		return common.ErrEmptyQueueType
	}
	if fn == nil {
		return fmt.Errorf("register %q: %w", queueType, common.ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[queueType]; ok {
		return fmt.Errorf("register %q: %w", queueType, common.ErrHandlerExists)
	}
	r.handlers[queueType] = fn
	return nil
}

func (r *Registry) Lookup(queueType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[queueType]
	return fn, ok
}

// QueueTypes returns the registered queue types in sorted order.
func (r *Registry) QueueTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
