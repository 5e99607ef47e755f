package payments

import (
	"context"
	"log"
	"time"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// VerifyHookContext is passed to verify hooks.
type VerifyHookContext struct {
	Ctx           context.Context
	CorrelationID string
	Requirement   PaymentRequirement
	Timestamp     time.Time
}

// VerifyResultHookContext carries the verify outcome.
type VerifyResultHookContext struct {
	VerifyHookContext
	Result VerificationResult
}

// SettleResultHookContext carries the settle outcome.
type SettleResultHookContext struct {
	Ctx       context.Context
	WorkID    string
	Context   PaymentContext
	Result    *SettlementResult
	Timestamp time.Time
}

// ErrorHookContext carries a protocol-level failure.
type ErrorHookContext struct {
	Ctx           context.Context
	CorrelationID string
	Err           error
}

// ErrorResponse is an explicit replacement for the default error
// output. A hook returning nil means "use the default"; there is no
// exception-based fall-through.
type ErrorResponse struct {
	Code    string
	Message string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforeVerifyHook runs before verification. Returning a result with
// Abort=true short-circuits the request with the given reason.
type BeforeVerifyHook func(VerifyHookContext) (*BeforeHookResult, error)

// BeforeHookResult aborts the guarded operation when Abort is set.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// AfterVerifyHook runs after verification completed (valid or not).
// Errors are logged and never affect the request.
type AfterVerifyHook func(VerifyResultHookContext) error

// AfterSettleHook runs after settlement was attempted. Errors are
// logged and never affect the already-delivered result.
type AfterSettleHook func(SettleResultHookContext) error

// OnErrorHook can replace the default error output. Returning nil
// keeps the default.
type OnErrorHook func(ErrorHookContext) *ErrorResponse

// ============================================================================
// Async Dispatch
// ============================================================================

// hookRunner dispatches after-hooks on an isolated worker goroutine so
// a hook invoked from inside a serving loop can never deadlock it.
// Before-verify hooks run inline since they gate the request.
type hookRunner struct {
	jobs   chan func()
	closed chan struct{}
}

const hookQueueDepth = 64

func newHookRunner() *hookRunner {
	r := &hookRunner{
		jobs:   make(chan func(), hookQueueDepth),
		closed: make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *hookRunner) loop() {
	for job := range r.jobs {
		job()
	}
	close(r.closed)
}

// dispatch queues a hook invocation. When the queue is full the hook
// runs on the caller's goroutine rather than being dropped.
func (r *hookRunner) dispatch(job func()) {
	select {
	case r.jobs <- job:
	default:
		job()
	}
}

// Close drains the queue and stops the worker.
func (r *hookRunner) Close() {
	close(r.jobs)
	<-r.closed
}

func logHookError(kind string, err error) {
	if err != nil {
		log.Printf("payments: %s hook failed: %v", kind, err)
	}
}
