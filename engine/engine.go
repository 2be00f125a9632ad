package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/session"
)

var (
	// ErrAgentNotFound is returned when invoking an unregistered agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentExists is returned when registering a second agent under a
	// taken name.
	ErrAgentExists = errors.New("agent already registered")
	// ErrInvocationNotFound is returned by StopInvocation for unknown ids.
	ErrInvocationNotFound = errors.New("invocation not found")
)

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentInvocations caps invocations running at the same time.
	// Invoke blocks until a slot is free. <= 0 is unlimited.
	MaxConcurrentInvocations int64

	// EventBufferSize sets the buffer of the event channels.
	EventBufferSize int

	// MaxMessagePairs limits the conversation history handed to agents to
	// the last n user turns. <= 0 keeps everything.
	MaxMessagePairs int
}

// DefaultConfig provides the default engine configuration.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
	MaxMessagePairs:          10,
}

// Options configures an Engine instance.
type Options struct {
	Config Config

	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore

	// MemoryStore defaults to an in-memory store.
	MemoryStore core.MemoryStore

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Engine orchestrates root agent execution. It is safe for concurrent use.
type Engine struct {
	sessionStore core.SessionStore
	memoryStore  core.MemoryStore
	logger       logging.Logger
	config       Config
	sem          *semaphore.Weighted

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.Mutex
}

var _ core.Engine = (*Engine)(nil)

// New creates an Engine with in-memory defaults.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		MemoryStore:  memory.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}

	e := &Engine{
		sessionStore:      opts.SessionStore,
		memoryStore:       opts.MemoryStore,
		logger:            logging.OrNoOp(opts.Logger),
		config:            opts.Config,
		agents:            make(map[string]core.Agent),
		activeInvocations: make(map[string]context.CancelFunc),
	}

	if opts.Config.MaxConcurrentInvocations > 0 {
		e.sem = semaphore.NewWeighted(opts.Config.MaxConcurrentInvocations)
	}

	return e
}

// Register adds an agent to the registry under its name.
func (e *Engine) Register(a core.Agent) error {
	if a == nil {
		return fmt.Errorf("engine: agent is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.agents[a.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrAgentExists, a.Name())
	}

	e.agents[a.Name()] = a

	return nil
}

// GetAgent retrieves a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]
	return a, ok
}

// Agents returns the registered agent names in lexical order.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.agents))
	for name := range e.agents {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SessionStore returns the store invocations persist into.
func (e *Engine) SessionStore() core.SessionStore { return e.sessionStore }

// GetSession returns a snapshot of the session for key, creating it when it
// does not exist yet.
func (e *Engine) GetSession(key core.SessionKey) (*core.Session, error) {
	sess, err := e.sessionStore.Get(key)
	if errors.Is(err, core.ErrSessionNotFound) {
		return e.sessionStore.Create(key)
	}
	return sess, err
}

// Invoke starts an agent asynchronously. The events channel is closed when the
// invocation ends; a terminal error, if any, is sent on the error channel
// before both channels close.
func (e *Engine) Invoke(
	ctx context.Context,
	key core.SessionKey,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("%w: %q", ErrAgentNotFound, agentName)
	}

	sess, err := e.GetSession(key)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return "", nil, nil, err
		}
	}

	invocationID := uuid.NewString()

	userEvent := core.NewUserContentEvent(invocationID, &userContent)
	userEvent.Branch = agent.Name()

	if err := e.sessionStore.AppendEvent(key, userEvent); err != nil {
		e.release()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)

	invocationCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	runCtx := core.NewRunContext(
		invocationCtx,
		key,
		invocationID,
		core.AgentInfo{Name: agent.Name(), Type: "root"},
		userContent,
		agentEmit,
		sess,
		e.sessionStore,
		e.memoryStore,
		e.logger,
	)
	runCtx.MaxMessagePairs = e.config.MaxMessagePairs

	e.logger.Debug("engine.invoke.start", "agent", agent.Name(), "invocation", invocationID, "session", key.String())

	runErr := make(chan error, 1)

	go func() {
		defer close(agentEmit)
		runErr <- e.runAgent(runCtx, agent)
	}()

	go func() {
		defer func() {
			cancel()
			e.invocationsMu.Lock()
			delete(e.activeInvocations, invocationID)
			e.invocationsMu.Unlock()
			e.release()
		}()

		procErr := e.processEvents(invocationCtx, key, agentEmit, eventsCh)
		if procErr != nil {
			cancel()
			for range agentEmit {
			}
		}

		agentErr := <-runErr

		switch {
		case procErr != nil:
			errorsCh <- procErr
		case agentErr != nil:
			errorsCh <- fmt.Errorf("agent execution failed: %w", agentErr)
		}

		e.logger.Debug("engine.invoke.done", "agent", agent.Name(), "invocation", invocationID,
			"failed", procErr != nil || agentErr != nil)

		close(errorsCh)
		close(eventsCh)
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// InvokeSync runs an agent to completion and returns all events, partial
// events included.
func (e *Engine) InvokeSync(
	ctx context.Context,
	key core.SessionKey,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := e.Invoke(ctx, key, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for ev := range eventsCh {
		events = append(events, ev)
	}

	if err := <-errorsCh; err != nil {
		return invocationID, events, err
	}

	return invocationID, events, nil
}

// StopInvocation cancels a running invocation.
func (e *Engine) StopInvocation(invocationID string) error {
	e.invocationsMu.Lock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrInvocationNotFound, invocationID)
	}

	cancel()
	return nil
}

func (e *Engine) release() {
	if e.sem != nil {
		e.sem.Release(1)
	}
}

// runAgent runs the agent and converts a panic into an error.
func (e *Engine) runAgent(runCtx *core.RunContext, agent core.Agent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine.agent.panic", "agent", agent.Name(), "panic", fmt.Sprint(r))
			err = fmt.Errorf("agent %s panicked: %v", agent.Name(), r)
		}
	}()

	return agent.Run(runCtx)
}

// processEvents applies state deltas, persists non-partial events and
// forwards every event to the caller until the agent closes its channel.
func (e *Engine) processEvents(
	ctx context.Context,
	key core.SessionKey,
	agentEmit <-chan core.Event,
	eventsCh chan<- core.Event,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-agentEmit:
			if !ok {
				return nil
			}

			if err := e.applyEventActions(key, ev); err != nil {
				return fmt.Errorf("failed to process event actions: %w", err)
			}

			if !ev.IsPartial() {
				if err := e.sessionStore.AppendEvent(key, ev); err != nil {
					return fmt.Errorf("failed to append event to session: %w", err)
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case eventsCh <- ev:
			}
		}
	}
}

// applyEventActions applies the side effects encoded in an event's actions.
func (e *Engine) applyEventActions(key core.SessionKey, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := e.sessionStore.ApplyDelta(key, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		e.logger.Debug("engine.event.transfer", "target", *ev.Actions.TransferToAgent, "branch", ev.Branch)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine.event.escalate", "branch", ev.Branch)
	}

	return nil
}
