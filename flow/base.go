package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// ErrNoModel is returned when an agent without a model is executed.
var ErrNoModel = errors.New("agent has no model")

// BaseFlow is the request -> LLM -> (optional tool loop) cycle with
// pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed on each final model response.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool executor.
func (f *BaseFlow) SetFunctionExecutor(e FunctionExecutor) { f.executor = e }

// Execute launches the flow asynchronously.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error) {
	events := make(chan core.Event, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errCh)

		start := time.Now()
		steps, err := f.run(runCtx, events)

		if cl, ok := runCtx.Logger().(*logging.CrewLogger); ok {
			cl.LogFlowExecution(f.agent.GetName(), steps, time.Since(start), err == nil, err)
		}

		if err != nil {
			errCh <- err
		}
	}()

	return events, errCh
}

// run loops model turns until a final answer, a transfer or an error. It
// returns the number of model calls made.
func (f *BaseFlow) run(runCtx *core.RunContext, events chan<- core.Event) (int, error) {
	name := f.agent.GetName()

	llm := f.agent.GetLLM()
	if llm == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoModel, name)
	}

	limiter := core.NewCallLimiter(f.agent.MaxToolRecursions())

	// Assistant tool calls and tool responses of the current turn.
	var turn []core.Content

	for {
		if err := limiter.Increment(); err != nil {
			return limiter.Count() - 1, fmt.Errorf("agent %s: %w", name, err)
		}

		req := model.Request{Stream: f.agent.IsStreamingEnabled()}
		for _, processor := range f.requestProcessors {
			if err := processor.ProcessRequest(runCtx, &req, f.agent); err != nil {
				return limiter.Count(), fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
			}
		}
		req.Contents = append(req.Contents, turn...)

		resp, err := f.callModel(runCtx, llm, req, events)
		if err != nil {
			return limiter.Count(), err
		}

		for _, processor := range f.responseProcessors {
			if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
				return limiter.Count(), fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
			}
		}

		ev := core.NewEvent(runCtx.RunID, name)
		ev.Branch = runCtx.Branch
		content := resp.Content
		ev.Content = &content

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			complete := true
			ev.TurnComplete = &complete
			return limiter.Count(), send(runCtx, events, ev)
		}

		if err := send(runCtx, events, ev); err != nil {
			return limiter.Count(), err
		}
		turn = append(turn, resp.Content)

		var (
			responseParts []core.Part
			handedOff     bool
		)

		f.executor.Execute(runCtx, f.agent, calls, func(respEv core.Event) error {
			responseParts = append(responseParts, respEv.Content.Parts...)
			if respEv.Actions.TransferToAgent != nil || (respEv.Actions.Escalate != nil && *respEv.Actions.Escalate) {
				handedOff = true
			}
			return send(runCtx, events, respEv)
		})

		if err := runCtx.Err(); err != nil {
			return limiter.Count(), err
		}

		turn = append(turn, core.Content{Role: core.RoleTool, Parts: responseParts})

		if handedOff {
			return limiter.Count(), nil
		}
	}
}

// callModel performs one generation, forwarding partial text as partial
// events and to the token callback.
func (f *BaseFlow) callModel(runCtx *core.RunContext, llm model.Model, req model.Request, events chan<- core.Event) (model.Response, error) {
	name := f.agent.GetName()
	cb := f.agent.GetCallbacks()

	if cb.OnLLMStart != nil {
		cb.OnLLMStart(name, req)
	}

	start := time.Now()

	resp, err := model.Collect(runCtx.Context, llm, req, func(chunk model.Response) {
		text := chunk.Content.Text()
		if text == "" {
			return
		}
		if cb.OnLLMNewToken != nil {
			cb.OnLLMNewToken(text)
		}
		pe := core.NewPartialEvent(runCtx.RunID, name, text)
		pe.Branch = runCtx.Branch
		_ = send(runCtx, events, pe)
	})

	if cl, ok := runCtx.Logger().(*logging.CrewLogger); ok {
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		cl.LogLLMCall(llm.Info().Name, tokens, time.Since(start), err == nil, err)
	}

	if err != nil {
		return model.Response{}, fmt.Errorf("agent %s: model call failed: %w", name, err)
	}

	if cb.OnLLMEnd != nil {
		cb.OnLLMEnd(name, resp)
	}

	return resp, nil
}

func send(runCtx *core.RunContext, events chan<- core.Event, ev core.Event) error {
	select {
	case <-runCtx.Done():
		return runCtx.Err()
	case events <- ev:
		return nil
	}
}
