package payments

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is one unit of remote work to gate behind the paywall.
type Request struct {
	// CorrelationID is the caller's transient request identifier (e.g.
	// a message id). Generated when empty.
	CorrelationID string

	// Token is the opaque bearer token. Empty means unauthenticated:
	// verification is never attempted.
	Token string

	// Input is the opaque work input forwarded to the executor.
	Input json.RawMessage

	// Credits overrides the orchestrator's default policy for this
	// request.
	Credits *CreditsPolicy

	// Overrides layer request-specific requirement values over the
	// configured defaults.
	Overrides RequirementOverrides

	// Webhook, when set, receives the terminal state.
	Webhook *WebhookConfig
}

// Orchestrator composes verifier, ledger, execution adapter, settler
// and notifier into the verify/execute/settle lifecycle. One instance
// owns its facilitator client and ledger for its whole lifetime; there
// is no shared global state.
type Orchestrator struct {
	builder  *RequirementBuilder
	verifier *Verifier
	ledger   *RequestLedger
	adapter  *ExecutionAdapter
	settler  *Settler
	notifier *Notifier
	results  *resultStore
	credits  CreditsPolicy
	runner   *hookRunner

	beforeVerifyHooks []BeforeVerifyHook
	afterVerifyHooks  []AfterVerifyHook
	afterSettleHooks  []AfterSettleHook
	onErrorHooks      []OnErrorHook
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDefaultCredits sets the statically configured credits policy.
func WithDefaultCredits(policy CreditsPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.credits = policy
	}
}

// WithLedger injects a pre-built ledger, e.g. one shared between the
// request and response phases of a two-phase interceptor.
func WithLedger(ledger *RequestLedger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.ledger = ledger
	}
}

// WithNotifier overrides the webhook notifier.
func WithNotifier(notifier *Notifier) OrchestratorOption {
	return func(o *Orchestrator) {
		o.notifier = notifier
	}
}

// NewOrchestrator wires the lifecycle around one executor and one
// facilitator client. settlementPolicy selects what a settle failure
// does to the caller's result. A nil executor is allowed for bindings
// that execute the work themselves (two-phase gateways, tool
// paywalls) and only use Authorize and SettleTerminal.
func NewOrchestrator(
	config RequirementConfig,
	facilitator FacilitatorClient,
	executor Executor,
	settlementPolicy SettlementPolicy,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	builder, err := NewRequirementBuilder(config)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		builder:  builder,
		verifier: NewVerifier(facilitator),
		ledger:   NewRequestLedger(),
		settler:  NewSettler(facilitator, settlementPolicy),
		notifier: NewNotifier(),
		results:  newResultStore(resultTTL),
		credits:  FixedCredits(1),
		runner:   newHookRunner(),
	}
	if executor != nil {
		o.adapter = NewExecutionAdapter(executor)
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Close stops the hook worker. Pending async hooks are drained first.
func (o *Orchestrator) Close() {
	o.runner.Close()
}

// Ledger exposes the settle guard, e.g. so a two-phase binding can
// share it across invocations.
func (o *Orchestrator) Ledger() *RequestLedger {
	return o.ledger
}

// ============================================================================
// Hook Registration (chainable)
// ============================================================================

// OnBeforeVerify registers a hook that runs before verification and
// may abort the request.
func (o *Orchestrator) OnBeforeVerify(hook BeforeVerifyHook) *Orchestrator {
	o.beforeVerifyHooks = append(o.beforeVerifyHooks, hook)
	return o
}

// OnAfterVerify registers a hook that runs after verification,
// dispatched asynchronously.
func (o *Orchestrator) OnAfterVerify(hook AfterVerifyHook) *Orchestrator {
	o.afterVerifyHooks = append(o.afterVerifyHooks, hook)
	return o
}

// OnAfterSettle registers a hook that runs after settlement was
// attempted, dispatched asynchronously.
func (o *Orchestrator) OnAfterSettle(hook AfterSettleHook) *Orchestrator {
	o.afterSettleHooks = append(o.afterSettleHooks, hook)
	return o
}

// OnError registers a hook that may replace the default error output.
// Returning nil keeps the default.
func (o *Orchestrator) OnError(hook OnErrorHook) *Orchestrator {
	o.onErrorHooks = append(o.onErrorHooks, hook)
	return o
}

// ============================================================================
// Verification phase (shared by all drive modes)
// ============================================================================

// Authorize runs the verification phase: token check, credits
// resolution, requirement build, facilitator verify, ledger entry
// creation. On success the ledger holds a PaymentContext under the
// returned correlation id. Verification always completes before any
// execution step begins.
func (o *Orchestrator) Authorize(ctx context.Context, req Request) (string, error) {
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	// Decode-only routing hints. An explicit plan id in the request
	// still wins over the token's hint.
	overrides := req.Overrides
	if req.Token != "" && overrides.PlanID == "" {
		if hints := DecodeTokenHints(req.Token); hints.PlanID != "" {
			overrides.PlanID = hints.PlanID
		}
	}
	requirement := o.builder.Build(overrides)

	if req.Token == "" {
		// The requirement rides along so the client knows which plans
		// would grant access.
		return "", o.errorOut(ctx, correlationID, NewUnauthenticatedError(requirement))
	}

	// Credits are resolved once per request, before verification.
	policy := o.credits
	if req.Credits != nil {
		policy = *req.Credits
	}
	credits, err := policy.Resolve(ctx, req.Input)
	if err != nil {
		return "", o.errorOut(ctx, correlationID, &PaymentError{
			Code:    ErrCodeHandlerError,
			Message: "credits resolution failed: " + err.Error(),
		})
	}

	hookCtx := VerifyHookContext{
		Ctx:           ctx,
		CorrelationID: correlationID,
		Requirement:   requirement,
		Timestamp:     time.Now(),
	}
	for _, hook := range o.beforeVerifyHooks {
		result, err := hook(hookCtx)
		logHookError("before-verify", err)
		if result != nil && result.Abort {
			return "", o.errorOut(ctx, correlationID, NewPaymentRequiredError(result.Reason, requirement))
		}
	}

	verification := o.verifier.Verify(ctx, requirement, req.Token, credits)

	afterCtx := VerifyResultHookContext{VerifyHookContext: hookCtx, Result: *verification}
	for _, hook := range o.afterVerifyHooks {
		h := hook
		o.runner.dispatch(func() { logHookError("after-verify", h(afterCtx)) })
	}

	if !verification.IsValid {
		// The decoded hints are discarded together with the context.
		return "", o.errorOut(ctx, correlationID, NewPaymentRequiredError(verification.InvalidReason, requirement))
	}

	o.ledger.Put(correlationID, PaymentContext{
		Token:           req.Token,
		Requirement:     requirement,
		CreditsToSettle: credits,
		AgentRequestID:  verification.AgentRequestID,
	})

	return correlationID, nil
}

// ============================================================================
// Drive modes
// ============================================================================

// Run drives the blocking mode: verify, execute, await the terminal
// event, settle, and return the outcome in one round trip.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*TaskResult, error) {
	if err := o.requireExecutor(); err != nil {
		return nil, err
	}

	correlationID, err := o.Authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	workID := o.begin(correlationID)
	sink := &collectorSink{}

	if err := o.adapter.Run(ctx, workID, req.Input, sink); err != nil {
		return nil, o.errorOut(ctx, correlationID, err)
	}

	return o.finish(ctx, workID, sink.terminal, req.Webhook)
}

// Submit drives the non-blocking mode: verify, acknowledge, and run
// execute/settle/notify on a detached background path. The caller
// polls Status or receives the webhook for the outcome.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*TaskAck, error) {
	if err := o.requireExecutor(); err != nil {
		return nil, err
	}

	correlationID, err := o.Authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	workID := o.begin(correlationID)

	// The background path must not die with the request context.
	bg := context.WithoutCancel(ctx)
	go func() {
		sink := &collectorSink{}
		runErr := o.adapter.Run(bg, workID, req.Input, sink)
		terminal := sink.terminal
		if runErr != nil && !terminal.Terminal() {
			terminal = Event{WorkID: workID, State: StateFailed, Err: runErr.Error()}
		}
		_, _ = o.finish(bg, workID, terminal, req.Webhook)
	}()

	return &TaskAck{WorkID: workID, CorrelationID: correlationID, State: "submitted"}, nil
}

// Stream drives the streaming mode: intermediate events are forwarded
// to the returned channel as they occur; the channel closes after the
// terminal event. Settlement fires exactly once at the terminal event
// on the producer side, regardless of whether the consumer is still
// reading.
func (o *Orchestrator) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if err := o.requireExecutor(); err != nil {
		return nil, err
	}

	correlationID, err := o.Authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	workID := o.begin(correlationID)
	out := make(chan Event, 16)

	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		sink := &streamSink{
			consumer: ctx,
			out:      out,
			onTerminal: func(ev Event) {
				_, _ = o.finish(bg, workID, ev, req.Webhook)
			},
		}
		if runErr := o.adapter.Run(bg, workID, req.Input, sink); runErr != nil {
			_, _ = o.finish(bg, workID, Event{WorkID: workID, State: StateFailed, Err: runErr.Error()}, req.Webhook)
		}
	}()

	return out, nil
}

// Cancel requests early termination of a running task. If cancellation
// races with natural completion, the ledger's settle guard decides
// which terminal wins; at most one settlement happens either way.
func (o *Orchestrator) Cancel(ctx context.Context, workID string) error {
	if err := o.requireExecutor(); err != nil {
		return err
	}
	return o.adapter.Cancel(ctx, workID)
}

// Status returns the terminal result of a task if it finished, or a
// working/submitted placeholder while the ledger still tracks it.
func (o *Orchestrator) Status(workID string) (*TaskResult, bool) {
	if result, ok := o.results.Get(workID); ok {
		return result, true
	}
	if _, ok := o.ledger.Get(workID); ok {
		return &TaskResult{WorkID: workID, State: ""}, true
	}
	return nil, false
}

// SettleTerminal settles for a terminal event produced outside the
// adapter, e.g. the response phase of a two-phase interceptor where
// the result was computed by a separate invocation. The id may be the
// correlation id or the work id.
func (o *Orchestrator) SettleTerminal(ctx context.Context, id string, terminal Event) (*TaskResult, error) {
	if terminal.WorkID == "" {
		terminal.WorkID = id
	}
	// The work id may never have been rekeyed when execution happened
	// elsewhere; alias it to itself so the guard resolves.
	o.ledger.Rekey(id, terminal.WorkID)
	return o.finish(ctx, terminal.WorkID, terminal, nil)
}

// ============================================================================
// Internals
// ============================================================================

// begin assigns the work id and migrates the ledger entry before any
// event can be lost.
func (o *Orchestrator) begin(correlationID string) string {
	workID := uuid.New().String()
	o.ledger.Rekey(correlationID, workID)
	return workID
}

// finish is the single settlement path for every drive mode. The
// ledger's TryMarkSettled is the only authority on "has this work id
// been charged"; later callers for the same work id get the stored
// result.
func (o *Orchestrator) finish(ctx context.Context, workID string, terminal Event, webhook *WebhookConfig) (*TaskResult, error) {
	if !terminal.Terminal() {
		terminal.State = StateFailed
		if terminal.Err == "" {
			terminal.Err = "executor terminated without a terminal event"
		}
	}

	if !o.ledger.TryMarkSettled(workID) {
		if result, ok := o.results.Get(workID); ok {
			return result, nil
		}
		return &TaskResult{WorkID: workID, State: terminal.State, Payload: terminal.Payload, Error: terminal.Err}, nil
	}

	pc, _ := o.ledger.Get(workID)

	// Credits precedence: terminal-event value, then the per-request
	// policy resolved at Authorize time. Failed and canceled work
	// defaults to zero unless the handler explicitly reported usage.
	if terminal.CreditsUsed != nil {
		pc.CreditsToSettle = *terminal.CreditsUsed
	} else if terminal.State != StateCompleted {
		pc.CreditsToSettle = 0
	}

	settlement, settleErr := o.settler.Settle(ctx, pc)

	settleHookCtx := SettleResultHookContext{
		Ctx:       ctx,
		WorkID:    workID,
		Context:   pc,
		Result:    settlement,
		Timestamp: time.Now(),
	}
	for _, hook := range o.afterSettleHooks {
		h := hook
		o.runner.dispatch(func() { logHookError("after-settle", h(settleHookCtx)) })
	}

	o.ledger.Remove(workID)
	if o.adapter != nil {
		o.adapter.Forget(workID)
	}

	result := &TaskResult{
		WorkID:     workID,
		State:      terminal.State,
		Payload:    terminal.Payload,
		Error:      terminal.Err,
		Settlement: settlement,
	}
	o.results.Put(workID, result)

	// Webhook delivery is a strictly isolated failure domain: it runs
	// off the response path and its outcome is never reported.
	if webhook != nil {
		go o.notifier.Notify(context.WithoutCancel(ctx), webhook, workID, terminal.State, terminal.Payload)
	}

	if settleErr != nil {
		return result, settleErr
	}
	return result, nil
}

func (o *Orchestrator) requireExecutor() error {
	if o.adapter == nil {
		return &PaymentError{Code: ErrCodeHandlerError, Message: "no executor configured"}
	}
	return nil
}

// errorOut gives the on-error hooks a chance to replace the default
// error output. A nil hook return means "use the default".
func (o *Orchestrator) errorOut(ctx context.Context, correlationID string, err error) error {
	hookCtx := ErrorHookContext{Ctx: ctx, CorrelationID: correlationID, Err: err}
	for _, hook := range o.onErrorHooks {
		if resp := hook(hookCtx); resp != nil {
			return &PaymentError{Code: resp.Code, Message: resp.Message}
		}
	}
	return err
}

// collectorSink records the terminal event for call/return drive
// modes.
type collectorSink struct {
	terminal Event
}

func (s *collectorSink) Publish(_ context.Context, event Event) error {
	if event.Terminal() {
		s.terminal = event
	}
	return nil
}

// streamSink forwards events to the consumer channel and triggers
// settlement on the terminal event. A disconnected consumer only stops
// forwarding; it never stops settlement.
type streamSink struct {
	consumer   context.Context
	out        chan<- Event
	onTerminal func(Event)
}

func (s *streamSink) Publish(_ context.Context, event Event) error {
	select {
	case s.out <- event:
	case <-s.consumer.Done():
		// Consumer went away; keep producing for settlement's sake.
	}
	if event.Terminal() {
		s.onTerminal(event)
	}
	return nil
}

// ============================================================================
// Result store
// ============================================================================

// resultTTL bounds how long terminal results stay available for
// polling.
const resultTTL = 10 * time.Minute

// resultStore keeps terminal task results for Status polling, with
// lazy expiry on writes.
type resultStore struct {
	mu      sync.Mutex
	results map[string]*TaskResult
	expiry  map[string]time.Time
	ttl     time.Duration
}

func newResultStore(ttl time.Duration) *resultStore {
	return &resultStore{
		results: make(map[string]*TaskResult),
		expiry:  make(map[string]time.Time),
		ttl:     ttl,
	}
}

func (s *resultStore) Put(workID string, result *TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, exp := range s.expiry {
		if now.After(exp) {
			delete(s.results, id)
			delete(s.expiry, id)
		}
	}

	s.results[workID] = result
	s.expiry[workID] = now.Add(s.ttl)
}

func (s *resultStore) Get(workID string) (*TaskResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiry[workID]
	if !ok || time.Now().After(exp) {
		return nil, false
	}
	return s.results[workID], true
}
