package tool

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
)

// MemoryTool lets a model recall and record long-term memories and session
// state through the ToolContext. Operations:
//
//	search_memory  query, limit   recall memories of the current user
//	store_memory   content        remember a fact about the current user
//	get_state      key            read a session state value
//	set_state      key, value     write a session state value
type MemoryTool struct {
	*FunctionTool
}

// NewMemoryTool creates the manage_memory tool.
func NewMemoryTool() *MemoryTool {
	m := &MemoryTool{}
	m.FunctionTool = NewFunctionToolFromParams(
		"manage_memory",
		"Recall or record long-term memories about the user and read or write session state. "+
			"Use search_memory before answering questions about the user's preferences.",
		[]Param{
			{Name: "operation", Type: "string", Required: true, Enum: []string{"search_memory", "store_memory", "get_state", "set_state"}, Description: "The memory operation to perform"},
			{Name: "query", Type: "string", Description: "Search query for search_memory"},
			{Name: "limit", Type: "integer", Description: "Maximum results for search_memory", Default: 5},
			{Name: "content", Type: "string", Description: "Memory text for store_memory"},
			{Name: "key", Type: "string", Description: "State key for get_state/set_state"},
			{Name: "value", Type: "string", Description: "State value for set_state"},
		},
		m.call,
	)
	return m
}

func (m *MemoryTool) call(tc *core.ToolContext, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)

	switch op {
	case "search_memory":
		query, _ := args["query"].(string)
		limit := 5
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		} else if l, ok := args["limit"].(int); ok {
			limit = l
		}

		results, err := tc.SearchMemory(query, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search memory: %w", err)
		}

		memories := make([]string, 0, len(results))
		for _, r := range results {
			memories = append(memories, r.Content)
		}

		return map[string]any{"query": query, "count": len(memories), "memories": memories}, nil
	case "store_memory":
		content, ok := args["content"].(string)
		if !ok || content == "" {
			return nil, NewToolError(m.Name(), "content is required for store_memory", CodeValidation)
		}

		if err := tc.StoreMemory(content, map[string]any{"agent": tc.AgentName(), "session_id": tc.SessionID()}); err != nil {
			return nil, fmt.Errorf("failed to store memory: %w", err)
		}

		return map[string]any{"stored": true}, nil
	case "get_state":
		key, ok := args["key"].(string)
		if !ok || key == "" {
			return nil, NewToolError(m.Name(), "key is required for get_state", CodeValidation)
		}

		v, found := tc.GetState(key)

		return map[string]any{"key": key, "value": v, "found": found}, nil
	case "set_state":
		key, ok := args["key"].(string)
		if !ok || key == "" {
			return nil, NewToolError(m.Name(), "key is required for set_state", CodeValidation)
		}

		tc.SetState(key, args["value"])

		return map[string]any{"key": key, "updated": true}, nil
	default:
		return nil, NewToolError(m.Name(), fmt.Sprintf("unknown operation: %s", op), CodeValidation)
	}
}
