package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ExecutionAdapter normalizes an arbitrary task-executing collaborator
// into "produces ordered lifecycle events, terminates exactly once".
// It forwards the first terminal event per work id and drops any later
// ones, so a cancel racing natural completion can never produce two
// settlement triggers.
type ExecutionAdapter struct {
	executor Executor

	mu         sync.Mutex
	terminated map[string]bool
}

// NewExecutionAdapter wraps a push-style executor.
func NewExecutionAdapter(executor Executor) *ExecutionAdapter {
	return &ExecutionAdapter{
		executor:   executor,
		terminated: make(map[string]bool),
	}
}

// Run executes the work and forwards events to sink. The executor's
// own error (when it never emitted a terminal event) is synthesized
// into a Failed terminal event, so downstream settlement always sees a
// well-formed terminal state.
func (a *ExecutionAdapter) Run(ctx context.Context, workID string, input json.RawMessage, sink EventSink) error {
	guarded := &terminalGuardSink{adapter: a, next: sink}

	err := a.executor.Execute(ctx, workID, input, guarded)

	a.mu.Lock()
	done := a.terminated[workID]
	a.mu.Unlock()

	if !done {
		terminal := Event{WorkID: workID, State: StateCompleted}
		if err != nil {
			terminal.State = StateFailed
			terminal.Err = err.Error()
		}
		return guarded.Publish(ctx, terminal)
	}
	return nil
}

// Cancel requests early termination. Whichever terminal event is
// recorded first by the ledger's settle guard wins the race.
func (a *ExecutionAdapter) Cancel(ctx context.Context, workID string) error {
	return a.executor.Cancel(ctx, workID)
}

// Forget drops duplicate-terminal bookkeeping for a finished work id.
func (a *ExecutionAdapter) Forget(workID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.terminated, workID)
}

// markTerminated records the first terminal event for a work id.
// Returns false for any later terminal event.
func (a *ExecutionAdapter) markTerminated(workID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.terminated[workID] {
		return false
	}
	a.terminated[workID] = true
	return true
}

// terminalGuardSink suppresses duplicate terminal events before they
// reach the real sink.
type terminalGuardSink struct {
	adapter *ExecutionAdapter
	next    EventSink
}

func (s *terminalGuardSink) Publish(ctx context.Context, event Event) error {
	if event.Terminal() && !s.adapter.markTerminated(event.WorkID) {
		return nil
	}
	return s.next.Publish(ctx, event)
}

// CallReturnExecutor adapts a call/return-style handler into the
// push-style Executor contract. The terminal event is synthesized from
// the handler's return value; a panic is recovered into a Failed
// terminal so the lifecycle still terminates.
type CallReturnExecutor struct {
	handler HandlerFunc

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCallReturnExecutor wraps a synchronous handler.
func NewCallReturnExecutor(handler HandlerFunc) *CallReturnExecutor {
	return &CallReturnExecutor{
		handler: handler,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Execute invokes the handler once and emits the synthesized terminal
// event.
func (e *CallReturnExecutor) Execute(ctx context.Context, workID string, input json.RawMessage, sink EventSink) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[workID] = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.cancels, workID)
		e.mu.Unlock()
	}()

	result, err := e.invoke(runCtx, input)

	event := Event{WorkID: workID}
	switch {
	case runCtx.Err() != nil && ctx.Err() == nil:
		event.State = StateCanceled
	case err != nil:
		event.State = StateFailed
		event.Err = err.Error()
	default:
		event.State = StateCompleted
		if result != nil {
			event.Payload = result.Output
			event.CreditsUsed = result.CreditsUsed
		}
	}

	return sink.Publish(ctx, event)
}

// Cancel aborts the in-flight handler call for workID, if any.
func (e *CallReturnExecutor) Cancel(_ context.Context, workID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[workID]
	e.mu.Unlock()

	if !ok {
		return &PaymentError{Code: ErrCodeTaskNotFound, Message: fmt.Sprintf("no running task %s", workID)}
	}
	cancel()
	return nil
}

func (e *CallReturnExecutor) invoke(ctx context.Context, input json.RawMessage) (result *HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return e.handler(ctx, input)
}
