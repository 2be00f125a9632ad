package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// DefaultManagerInstructions steer the extraction model.
const DefaultManagerInstructions = "You are a long-term memory manager maintaining a core store of semantic memories about the user. " +
	"Extract all relevant facts from the conversation and record them with the provided tool."

// UserProfile is a ready-made schema for user preferences.
type UserProfile struct {
	Name                    string   `json:"name" description:"The user's full name"`
	PreferredName           string   `json:"preferred_name" description:"How the user wants to be addressed"`
	ResponseStylePreference string   `json:"response_style_preference" description:"How the user likes answers to be written"`
	SpecialSkills           []string `json:"special_skills" description:"Skills the user mentioned"`
	OtherPreferences        []string `json:"other_preferences" description:"Any other preferences"`
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Instructions are prepended to the extraction request.
	Instructions string
	// Store receives extracted memories when set.
	Store core.MemoryStore
	Logger logging.Logger
}

// Manager extracts structured memories of type T from conversations. The
// model is forced to call a tool whose parameters are derived from T; every
// call becomes one memory.
type Manager[T any] struct {
	llm          model.Model
	name         string
	description  string
	schema       map[string]any
	validator    *jsonschema.Schema
	instructions string
	store        core.MemoryStore
	logger       logging.Logger
}

// NewManager creates a manager for schema T. name and description describe
// the schema to the model, for example "UserProfile" and "Save the user's
// preferences.".
func NewManager[T any](llm model.Model, name, description string, optFns ...func(o *ManagerOptions)) (*Manager[T], error) {
	opts := ManagerOptions{Instructions: DefaultManagerInstructions}
	for _, fn := range optFns {
		fn(&opts)
	}

	schema := util.CreateSchema(new(T))

	validator, err := util.CompileSchema(name, schema)
	if err != nil {
		return nil, fmt.Errorf("memory manager: %w", err)
	}

	return &Manager[T]{
		llm:          llm,
		name:         name,
		description:  description,
		schema:       schema,
		validator:    validator,
		instructions: opts.Instructions,
		store:        opts.Store,
		logger:       logging.OrNoOp(opts.Logger),
	}, nil
}

// Extract reads memories from a conversation. A response without a schema
// call yields no memories.
func (m *Manager[T]) Extract(ctx context.Context, conversation []core.Content) ([]T, error) {
	req := model.Request{
		Instructions: m.instructions,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, renderConversation(conversation))},
		Tools:        []model.ToolDefinition{model.NewToolDefinition(m.name, m.description, m.schema)},
		ToolChoice:   m.name,
	}

	resp, err := model.Collect(ctx, m.llm, req, nil)
	if err != nil {
		return nil, fmt.Errorf("memory manager: %w", err)
	}

	var out []T
	for _, fc := range resp.FunctionCalls() {
		if fc.Name != m.name {
			continue
		}

		item, err := m.decode(fc.Arguments)
		if err != nil {
			m.logger.Warn("memory.extract.invalid", "schema", m.name, "error", err.Error())
			continue
		}

		out = append(out, item)
	}

	m.logger.Debug("memory.extract", "schema", m.name, "memories", len(out))

	return out, nil
}

func (m *Manager[T]) decode(raw string) (T, error) {
	var item T

	args, err := util.ParseArgs(raw)
	if err != nil {
		return item, err
	}

	v, err := util.NormalizeArgs(args)
	if err != nil {
		return item, err
	}

	if err := m.validator.Validate(v); err != nil {
		return item, err
	}

	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return item, err
	}

	return item, nil
}

// ExtractAndStore extracts memories and writes them to the store under
// namespace: the latest one as key/value entry named after the schema and
// every one as a searchable memory.
func (m *Manager[T]) ExtractAndStore(ctx context.Context, namespace string, conversation []core.Content) ([]T, error) {
	items, err := m.Extract(ctx, conversation)
	if err != nil {
		return nil, err
	}

	if m.store == nil || len(items) == 0 {
		return items, nil
	}

	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return items, fmt.Errorf("memory manager: %w", err)
		}

		if err := m.store.Store(namespace, string(raw), map[string]any{"kind": m.name}); err != nil {
			return items, fmt.Errorf("memory manager: %w", err)
		}
	}

	if err := m.store.Put(namespace, map[string]any{m.name: items[len(items)-1]}); err != nil {
		return items, fmt.Errorf("memory manager: %w", err)
	}

	return items, nil
}

func renderConversation(conversation []core.Content) string {
	var sb strings.Builder

	sb.WriteString("<conversation>\n")
	for _, c := range conversation {
		fmt.Fprintf(&sb, "%s: %s\n", c.Role, c.Text())
	}
	sb.WriteString("</conversation>")

	return sb.String()
}
