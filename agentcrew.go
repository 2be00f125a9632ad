// Package agentcrew routes user requests to a crew of agents.
//
// An Orchestrator holds a set of root agents (model agents or team
// compositions such as supervisors, chains, round-robin teams and swarms), a
// classifier that picks the agent for each request and an engine that runs
// the agent and records the conversation per user and session:
//
//	crew := agentcrew.New(classifier.NewModelClassifier(llm))
//	if err := crew.AddAgent(weatherAgent); err != nil {
//	    return err
//	}
//
//	resp, err := crew.RouteRequest(ctx, "What is the weather in Paris?", userID, sessionID)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Metadata.AgentName, resp.Output)
//
// When the classifier selects no agent the default agent answers, if one is
// set and UseDefaultAgentIfNoneIdentified is enabled; otherwise the response
// is the "No Agent" response carrying NoSelectedAgentMessage.
package agentcrew

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/classifier"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/engine"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/memory"
	"github.com/hupe1980/agentcrew/session"
)

// ErrAgentNotFound is returned when an agent name is not registered.
var ErrAgentNotFound = engine.ErrAgentNotFound

const (
	// NoAgentID is the agent id of the "No Agent" response.
	NoAgentID = "no_agent_selected"
	// NoAgentName is the agent name of the "No Agent" response.
	NoAgentName = "No Agent"
)

// Config holds the orchestration policy.
type Config struct {
	// LogAgentChat logs the input and answer of every agent run.
	LogAgentChat bool
	// LogClassifierChat logs the classifier input and history.
	LogClassifierChat bool
	// LogClassifierRawOutput logs the unparsed classifier output.
	LogClassifierRawOutput bool
	// LogClassifierOutput logs the routing decision.
	LogClassifierOutput bool
	// LogExecutionTimes logs classification and agent durations.
	LogExecutionTimes bool

	// MaxRetries is the number of classification attempts.
	MaxRetries int
	// UseDefaultAgentIfNoneIdentified routes unclassified requests to the
	// default agent.
	UseDefaultAgentIfNoneIdentified bool
	// NoSelectedAgentMessage is the output of the "No Agent" response.
	NoSelectedAgentMessage string
	// MaxMessagePairsPerAgent limits the history handed to agents and the
	// classifier.
	MaxMessagePairsPerAgent int
	// ClassificationErrorMessage, when set, is returned as output instead of
	// an error when classification fails.
	ClassificationErrorMessage string
	// GeneralRoutingErrorMessage, when set, is returned as output instead of
	// an error when the selected agent fails.
	GeneralRoutingErrorMessage string
}

// DefaultConfig returns the default orchestration policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:                      3,
		UseDefaultAgentIfNoneIdentified: true,
		NoSelectedAgentMessage:          "I'm sorry, I couldn't determine how to handle your request. Could you please rephrase it?",
		MaxMessagePairsPerAgent:         10,
	}
}

// Options configures an Orchestrator.
type Options struct {
	Config Config

	// MaxConcurrentInvocations caps concurrent agent runs.
	MaxConcurrentInvocations int64

	SessionStore core.SessionStore
	MemoryStore  core.MemoryStore
	Logger       logging.Logger

	// OnEvent receives every event of an agent run as it happens.
	OnEvent func(core.Event)
}

// Metadata describes how a request was routed.
type Metadata struct {
	UserInput        string
	AgentID          string
	AgentName        string
	UserID           string
	SessionID        string
	AdditionalParams map[string]string
}

// Response is the outcome of RouteRequest.
type Response struct {
	Metadata  Metadata
	Output    string
	Streaming bool
}

// IsNoAgent reports whether no agent handled the request.
func (r *Response) IsNoAgent() bool { return r != nil && r.Metadata.AgentID == NoAgentID }

// String renders the response the way the "No Agent" case is printed.
func (r *Response) String() string {
	return fmt.Sprintf("Response{Metadata: {UserInput: %q, AgentID: %q, AgentName: %q, UserID: %q, SessionID: %q}, Output: %q, Streaming: %t}",
		r.Metadata.UserInput, r.Metadata.AgentID, r.Metadata.AgentName, r.Metadata.UserID, r.Metadata.SessionID, r.Output, r.Streaming)
}

// Orchestrator classifies requests and runs the selected agent. It is safe
// for concurrent use.
type Orchestrator struct {
	cfg        Config
	classifier classifier.Classifier
	engine     *engine.Engine
	logger     logging.Logger
	onEvent    func(core.Event)

	mu           sync.RWMutex
	agents       []core.Agent
	defaultAgent core.Agent
}

// New creates an orchestrator using cls for routing.
func New(cls classifier.Classifier, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config:                   DefaultConfig(),
		MaxConcurrentInvocations: engine.DefaultConfig.MaxConcurrentInvocations,
		SessionStore:             session.NewInMemoryStore(),
		MemoryStore:              memory.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.MaxRetries <= 0 {
		opts.Config.MaxRetries = 1
	}

	logger := logging.OrNoOp(opts.Logger)

	eng := engine.New(func(o *engine.Options) {
		o.Config.MaxConcurrentInvocations = opts.MaxConcurrentInvocations
		o.Config.MaxMessagePairs = opts.Config.MaxMessagePairsPerAgent
		o.SessionStore = opts.SessionStore
		o.MemoryStore = opts.MemoryStore
		o.Logger = logger
	})

	return &Orchestrator{
		cfg:        opts.Config,
		classifier: cls,
		engine:     eng,
		logger:     logger,
		onEvent:    opts.OnEvent,
	}
}

// Config returns the orchestration policy.
func (o *Orchestrator) Config() Config { return o.cfg }

// AddAgent registers a root agent. Names must be unique.
func (o *Orchestrator) AddAgent(a core.Agent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.addLocked(a)
}

func (o *Orchestrator) addLocked(a core.Agent) error {
	if err := agent.ValidateUniqueNames(append(append([]core.Agent{}, o.agents...), a)...); err != nil {
		return err
	}

	if err := o.engine.Register(a); err != nil {
		return err
	}

	o.agents = append(o.agents, a)
	o.logger.Debug("agentcrew.agent.added", "agent", a.Name())

	return nil
}

// SetDefaultAgent sets the agent answering unclassified requests. It is
// registered when it is not known yet.
func (o *Orchestrator) SetDefaultAgent(a core.Agent) error {
	if a == nil {
		return fmt.Errorf("%w: default agent is nil", agent.ErrInvalidAgent)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.engine.GetAgent(a.Name()); !ok {
		if err := o.addLocked(a); err != nil {
			return err
		}
	}

	o.defaultAgent = a

	return nil
}

// DefaultAgent returns the default agent or nil.
func (o *Orchestrator) DefaultAgent() core.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultAgent
}

// Agents returns the registered agents in registration order.
func (o *Orchestrator) Agents() []core.Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]core.Agent, len(o.agents))
	copy(out, o.agents)

	return out
}

// Agent returns the registered agent with name.
func (o *Orchestrator) Agent(name string) (core.Agent, error) {
	a, ok := o.engine.GetAgent(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
	}
	return a, nil
}

// Session returns a snapshot of a conversation.
func (o *Orchestrator) Session(userID, sessionID string) (*core.Session, error) {
	return o.engine.GetSession(core.SessionKey{UserID: userID, SessionID: sessionID})
}

// RouteRequest classifies input, runs the selected agent and returns its
// final answer.
func (o *Orchestrator) RouteRequest(ctx context.Context, input, userID, sessionID string) (*Response, error) {
	key := core.SessionKey{UserID: userID, SessionID: sessionID}

	meta := Metadata{
		UserInput:        input,
		UserID:           userID,
		SessionID:        sessionID,
		AdditionalParams: map[string]string{},
	}

	sess, err := o.engine.GetSession(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	res, err := o.classify(ctx, input, sess.Transcript(o.cfg.MaxMessagePairsPerAgent))
	if err != nil {
		if o.cfg.ClassificationErrorMessage != "" {
			o.logger.Error("agentcrew.classification.failed", "error", err.Error())
			meta.AgentID, meta.AgentName = NoAgentID, NoAgentName
			return &Response{Metadata: meta, Output: o.cfg.ClassificationErrorMessage}, nil
		}
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	selected, err := o.selectAgent(res)
	if err != nil {
		return nil, err
	}

	if selected == nil {
		meta.AgentID, meta.AgentName = NoAgentID, NoAgentName
		return &Response{Metadata: meta, Output: o.cfg.NoSelectedAgentMessage}, nil
	}

	meta.AgentID = classifier.Profile{Name: selected.Name()}.ID()
	meta.AgentName = selected.Name()
	if res.SelectedAgent != nil {
		meta.AdditionalParams["confidence"] = strconv.FormatFloat(res.Confidence, 'f', -1, 64)
	}

	resp, err := o.dispatch(ctx, key, selected, input, meta)
	if err != nil {
		if o.cfg.GeneralRoutingErrorMessage != "" {
			o.logger.Error("agentcrew.agent.failed", "agent", selected.Name(), "error", err.Error())
			return &Response{Metadata: meta, Output: o.cfg.GeneralRoutingErrorMessage}, nil
		}
		return nil, err
	}

	return resp, nil
}

func (o *Orchestrator) classify(ctx context.Context, input string, history []core.Event) (*classifier.Result, error) {
	if o.classifier == nil {
		return &classifier.Result{}, nil
	}

	profiles := o.profiles()

	if o.cfg.LogClassifierChat {
		o.logger.Info("agentcrew.classifier.chat", "input", input, "history_events", len(history))
	}

	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := o.classifier.Classify(ctx, input, profiles, history)
		if err == nil {
			o.logDecision(res, time.Since(start))
			return res, nil
		}

		lastErr = err
		o.logger.Warn("agentcrew.classifier.retry", "attempt", attempt, "max", o.cfg.MaxRetries, "error", err.Error())
	}

	return nil, lastErr
}

func (o *Orchestrator) logDecision(res *classifier.Result, took time.Duration) {
	if o.cfg.LogClassifierRawOutput {
		o.logger.Info("agentcrew.classifier.raw", "output", res.Raw)
	}

	if o.cfg.LogClassifierOutput {
		selected := ""
		if res.SelectedAgent != nil {
			selected = res.SelectedAgent.Name
		}
		if cl, ok := o.logger.(*logging.CrewLogger); ok {
			cl.LogClassification(selected, res.Confidence, took)
		} else {
			o.logger.Info("agentcrew.classifier.output", "selected_agent", selected, "confidence", res.Confidence)
		}
	}

	if o.cfg.LogExecutionTimes {
		o.logger.Info("agentcrew.timing", "step", "classifying user intent", "duration", took.String())
	}
}

func (o *Orchestrator) profiles() []classifier.Profile {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]classifier.Profile, 0, len(o.agents))
	for _, a := range o.agents {
		out = append(out, classifier.Profile{Name: a.Name(), Description: a.Description()})
	}

	return out
}

// selectAgent maps a decision to a registered agent, falling back to the
// default agent when enabled.
func (o *Orchestrator) selectAgent(res *classifier.Result) (core.Agent, error) {
	if res != nil && res.SelectedAgent != nil {
		a, err := o.Agent(res.SelectedAgent.Name)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	if o.cfg.UseDefaultAgentIfNoneIdentified {
		if d := o.DefaultAgent(); d != nil {
			o.logger.Debug("agentcrew.default_agent", "agent", d.Name())
			return d, nil
		}
	}

	return nil, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, key core.SessionKey, a core.Agent, input string, meta Metadata) (*Response, error) {
	start := time.Now()

	_, events, errs, err := o.engine.Invoke(ctx, key, a.Name(), core.NewTextContent(core.RoleUser, input))
	if err != nil {
		return nil, err
	}

	resp := &Response{Metadata: meta}

	for ev := range events {
		if ev.IsPartial() {
			resp.Streaming = true
		}

		if o.onEvent != nil {
			o.onEvent(ev)
		}

		if ev.Branch == a.Name() && ev.TurnComplete != nil && *ev.TurnComplete && !ev.IsError() {
			resp.Output = ev.Text()
			for k, v := range ev.Metadata {
				resp.Metadata.AdditionalParams[k] = v
			}
		}
	}

	if err := <-errs; err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	if o.cfg.LogAgentChat {
		o.logger.Info("agentcrew.agent.chat", "agent", a.Name(), "input", input, "output", resp.Output)
	}

	if o.cfg.LogExecutionTimes {
		o.logger.Info("agentcrew.timing", "step", "agent "+a.Name(), "duration", time.Since(start).String())
	}

	if resp.Output == "" {
		return nil, fmt.Errorf("agent %s: %w", a.Name(), errNoAnswer)
	}

	return resp, nil
}

var errNoAnswer = errors.New("no final answer")
