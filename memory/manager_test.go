package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

var lexConversation = []core.Content{
	core.NewTextContent(core.RoleUser, "Hi! I'm Alex but please call me Lex. I'm a wizard at Python."),
	core.NewTextContent(core.RoleAssistant, "Nice to meet you, Lex! How would you like me to communicate with you?"),
	core.NewTextContent(core.RoleUser, "Keep it casual and witty. Also, I do competitive speedcubing!"),
}

const lexProfile = `{"name":"Alex","preferred_name":"Lex","response_style_preference":"casual and witty",` +
	`"special_skills":["Python","speedcubing"],"other_preferences":["emojis"]}`

func profileModel(captured *model.Request, args ...string) model.FuncModel {
	return func(_ context.Context, req model.Request) (model.Response, error) {
		if captured != nil {
			*captured = req
		}
		calls := make([]core.FunctionCall, 0, len(args))
		for i, a := range args {
			calls = append(calls, core.FunctionCall{ID: string(rune('a' + i)), Name: "UserProfile", Arguments: a})
		}
		return model.NewToolCallResponse("", calls...), nil
	}
}

func TestManager_Extract(t *testing.T) {
	var req model.Request

	m, err := NewManager[UserProfile](profileModel(&req, lexProfile), "UserProfile", "Save the user's preferences.",
		func(o *ManagerOptions) { o.Instructions = "Extract user preferences and settings" })
	require.NoError(t, err)

	profiles, err := m.Extract(context.Background(), lexConversation)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "Alex", p.Name)
	assert.Equal(t, "Lex", p.PreferredName)
	assert.Equal(t, []string{"Python", "speedcubing"}, p.SpecialSkills)

	assert.Equal(t, "Extract user preferences and settings", req.Instructions)
	assert.Equal(t, "UserProfile", req.ToolChoice)
	require.Len(t, req.Tools, 1)
	assert.Contains(t, req.Tools[0].Function.Parameters["required"], "preferred_name")
	assert.Contains(t, req.Contents[0].Text(), "user: Hi! I'm Alex")
}

func TestManager_SkipsInvalidCalls(t *testing.T) {
	m, err := NewManager[UserProfile](profileModel(nil, `{"name":"Alex"}`, lexProfile), "UserProfile", "profile")
	require.NoError(t, err)

	profiles, err := m.Extract(context.Background(), lexConversation)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestManager_NoCall(t *testing.T) {
	llm := model.FuncModel(func(context.Context, model.Request) (model.Response, error) {
		return model.NewTextResponse("nothing to remember"), nil
	})

	m, err := NewManager[UserProfile](llm, "UserProfile", "profile")
	require.NoError(t, err)

	profiles, err := m.Extract(context.Background(), lexConversation)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestManager_ExtractAndStore(t *testing.T) {
	store := NewInMemoryStore()

	m, err := NewManager[UserProfile](profileModel(nil, lexProfile), "UserProfile", "profile",
		func(o *ManagerOptions) { o.Store = store })
	require.NoError(t, err)

	_, err = m.ExtractAndStore(context.Background(), "lex", lexConversation)
	require.NoError(t, err)

	kv, err := store.Get("lex")
	require.NoError(t, err)
	require.Contains(t, kv, "UserProfile")
	assert.Equal(t, "Lex", kv["UserProfile"].(UserProfile).PreferredName)

	hits, err := store.Search("lex", "speedcubing", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "UserProfile", hits[0].Metadata["kind"])
}
