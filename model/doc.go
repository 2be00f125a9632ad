// Package model defines the provider‑agnostic abstractions for interacting
// with language models.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Map vendor errors onto a small set of sentinel errors
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel)
//
// Providers live in sub-packages (bedrock, openai, anthropic) and decorators
// such as resilience wrap any Model.
package model
