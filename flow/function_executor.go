package flow

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/tool"
)

// FunctionExecutor executes a batch of function/tool calls possibly in parallel and emits
// function response events through the provided emit callback. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and emit error responses)
//   - Emit exactly one FunctionResponse event per incoming FunctionCall
//   - Apply ToolContext accumulated actions to emitted events
//
// emit is never called concurrently.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool // if true, buffer results and emit in original order
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		if err := emit(e.executeOne(runCtx, agent, fnCalls[0])); err != nil {
			runCtx.LogError("agent.function.emit.error", "function", fnCalls[0].Name, "error", err.Error())
		}
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var (
		results = make([]*core.Event, n) // used only if PreserveOrder
		mu      sync.Mutex               // serializes emit & results writes
		wg      sync.WaitGroup
	)

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range fnCalls {
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Err() != nil {
				return
			}

			respEv := e.executeOne(runCtx, agent, fc)

			mu.Lock()
			defer mu.Unlock()

			if e.cfg.PreserveOrder {
				results[idx] = &respEv
				return
			}
			if err := emit(respEv); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
			}
		}(i, fnCalls[i])
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range results {
			if ev == nil {
				continue
			}
			if err := emit(*ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fnCalls[i].Name, "error", err.Error())
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

func (e *parallelFunctionExecutor) executeOne(runCtx *core.RunContext, agent FlowAgent, fc core.FunctionCall) core.Event {
	name := agent.GetName()
	cb := agent.GetCallbacks()

	toolCtx := core.NewToolContext(runCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", name, "function", fc.Name, "function_call_id", fc.ID)
	}
	if cb.OnToolStart != nil {
		cb.OnToolStart(name, fc)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(fc.Name, r)
				runCtx.LogError("agent.function.panic", "agent", name, "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(agent.GetTools(), toolCtx, fc.Name, fc.Arguments)
	}()

	dur := time.Since(start)
	if cl, ok := runCtx.Logger().(*logging.CrewLogger); ok {
		cl.LogToolCall(fc.Name, dur, err == nil, err)
	} else {
		runCtx.LogInfo("agent.function.executed", "agent", name, "function", fc.Name, "duration_ms", dur.Milliseconds(), "error", err != nil)
	}

	if cb.OnToolEnd != nil {
		cb.OnToolEnd(name, fc, result, err)
	}

	respEv := core.NewFunctionResponseEvent(runCtx.RunID, name, fc.ID, fc.Name, result, err)
	respEv.Branch = runCtx.Branch
	toolCtx.InternalApplyActions(&respEv)

	return respEv
}

// panicError converts a recovered panic value to a tool error carrying the stack.
func panicError(toolName string, r any) error {
	te := tool.NewToolError(toolName, fmt.Sprintf("panic: %v", r), tool.CodePanic)
	te.Details = string(debug.Stack())
	return te
}

// executeTool centralizes tool lookup & execution using the agent tool registry.
func executeTool(registry *tool.Registry, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	if registry == nil {
		return nil, tool.NewToolError(toolName, fmt.Sprintf("tool %q is not available", toolName), tool.CodeNotFound)
	}

	return registry.Execute(toolCtx, toolName, args)
}
