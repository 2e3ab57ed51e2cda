// Package tools registers named data-source executors and runs them as
// ordered fallback chains.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrChainExhausted is returned when every executor of a chain failed.
var ErrChainExhausted = errors.New("all providers in chain failed")

// ExecutorFunc defines a server-side tool executor.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// CallHook observes every executor call made through a chain.
type CallHook func(toolName string, elapsed time.Duration, err error)

// Registry stores tool executors keyed by tool name.
type Registry struct {
	mu          sync.RWMutex
	executors   map[string]ExecutorFunc
	callTimeout time.Duration
	hook        CallHook
}

// NewRegistry creates an empty tool executor registry. callTimeout bounds
// each call made by ExecuteChain; zero means no bound.
func NewRegistry(callTimeout time.Duration) *Registry {
	return &Registry{
		executors:   make(map[string]ExecutorFunc),
		callTimeout: callTimeout,
	}
}

// SetCallHook installs a hook run after every chained call.
func (r *Registry) SetCallHook(hook CallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// Register adds a new executor for a tool name.
func (r *Registry) Register(toolName string, exec ExecutorFunc) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[toolName]; exists {
		return fmt.Errorf("executor already registered for %s", toolName)
	}
	r.executors[toolName] = exec
	return nil
}

// MustRegister adds an executor or panics.
func (r *Registry) MustRegister(toolName string, exec ExecutorFunc) {
	if err := r.Register(toolName, exec); err != nil {
		panic(err)
	}
}

// Names lists the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	exec := r.executors[toolName]
	r.mu.RUnlock()
	if exec == nil {
		return nil, fmt.Errorf("no executor registered for %s", toolName)
	}
	return exec(ctx, args)
}

// ExecuteChain tries each tool in order and returns the first success
// along with the name of the tool that produced it. Each call runs under
// the registry's call timeout. When every tool fails the error wraps
// ErrChainExhausted and each individual failure.
func (r *Registry) ExecuteChain(ctx context.Context, toolNames []string, args json.RawMessage) (json.RawMessage, string, error) {
	if len(toolNames) == 0 {
		return nil, "", fmt.Errorf("%w: empty chain", ErrChainExhausted)
	}
	r.mu.RLock()
	hook := r.hook
	r.mu.RUnlock()

	errs := []error{ErrChainExhausted}
	for _, name := range toolNames {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := time.Now()
		result, err := r.executeBounded(ctx, name, args)
		if hook != nil {
			hook(name, time.Since(start), err)
		}
		if err == nil {
			return result, name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, "", errors.Join(errs...)
}

func (r *Registry) executeBounded(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if r.callTimeout <= 0 {
		return r.Execute(ctx, name, args)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.Execute(callCtx, name, args)
}
