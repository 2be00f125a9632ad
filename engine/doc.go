// Package engine runs root agents for the orchestrator.
//
// The Engine keeps a registry of named agents and executes each invocation in
// its own goroutine:
//
//  1. The user input is persisted as the first event of the invocation on
//     the agent's root branch.
//  2. The agent runs with a RunContext carrying the session snapshot, the
//     stores and the history limit.
//  3. Every emitted event has its state delta applied to the session store;
//     non-partial events are appended to the session history before they are
//     forwarded to the caller.
//
// Concurrent invocations are capped with a weighted semaphore. Invoke streams
// events; InvokeSync collects them. StopInvocation cancels a running
// invocation by id.
//
// Basic usage:
//
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//	if err := eng.Register(assistant); err != nil {
//	    return err
//	}
//
//	key := core.SessionKey{UserID: "user", SessionID: "s1"}
//	_, events, err := eng.InvokeSync(ctx, key, "assistant", core.NewTextContent(core.RoleUser, "hi"))
package engine
