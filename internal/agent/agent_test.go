package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camberg23/el-goose/internal/elgoose"
	"github.com/camberg23/el-goose/internal/llm"
)

// scriptedClient returns one canned response per turn.
type scriptedClient struct {
	responses []*llm.Response
	calls     int
	seen      [][]llm.Message
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, systemPrompt string) (*llm.Response, error) {
	c.seen = append(c.seen, messages)
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func newScriptedAgent(t *testing.T, upstream http.HandlerFunc, responses ...*llm.Response) (*Agent, *scriptedClient) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client := elgoose.NewClient(srv.URL, zerolog.Nop())
	normalizer := elgoose.NewNormalizer(client, 1, zerolog.Nop())

	scripted := &scriptedClient{responses: responses}
	return NewAgent(llm.ForceClient(scripted), normalizer, zerolog.Nop()), scripted
}

func TestChatDirectAnswer(t *testing.T) {
	ag, scripted := newScriptedAgent(t,
		func(w http.ResponseWriter, r *http.Request) { t.Fatal("no upstream call expected") },
		&llm.Response{Content: "Goose is a band from Norwalk, Connecticut.", StopReason: "end_turn"},
	)

	response, history, err := ag.Chat(context.Background(), "Who are Goose?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Goose is a band from Norwalk, Connecticut.", response)
	assert.Equal(t, 1, scripted.calls)

	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestChatToolUseLoop(t *testing.T) {
	ag, scripted := newScriptedAgent(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":false,"data":[{"venuename":"Red Rocks","city":"Morrison"}]}`))
		},
		&llm.Response{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "query_elgoose_api", Input: []byte(`{"method":"venues"}`)},
			},
		},
		&llm.Response{Content: "Goose has played Red Rocks in Morrison.", StopReason: "end_turn"},
	)

	response, _, err := ag.Chat(context.Background(), "Where have Goose played?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Goose has played Red Rocks in Morrison.", response)
	assert.Equal(t, 2, scripted.calls)

	// The tool result is fed back to the model on the second turn.
	secondTurn := scripted.seen[1]
	last := secondTurn[len(secondTurn)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Red Rocks")
	assert.Contains(t, last.Content, "query_elgoose_api")
}

func TestChatToolErrorFedBackAsText(t *testing.T) {
	ag, scripted := newScriptedAgent(t,
		func(w http.ResponseWriter, r *http.Request) { t.Fatal("no upstream call expected") },
		&llm.Response{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCall{
				// Name filter with no value: a validation error, which
				// must not abort the turn.
				{ID: "call_1", Name: "query_elgoose_api", Input: []byte(`{"method":"songs","column":"songname"}`)},
			},
		},
		&llm.Response{Content: "Which song did you mean?", StopReason: "end_turn"},
	)

	response, _, err := ag.Chat(context.Background(), "How many times was it played?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Which song did you mean?", response)

	secondTurn := scripted.seen[1]
	last := secondTurn[len(secondTurn)-1]
	assert.Contains(t, last.Content, "Error:")
	assert.Contains(t, last.Content, "value is required")
}

// erroringClient fails every turn, standing in for an unreachable
// local model.
type erroringClient struct{ calls int }

func (c *erroringClient) Name() string { return "erroring" }

func (c *erroringClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, systemPrompt string) (*llm.Response, error) {
	c.calls++
	return nil, errors.New("connection refused")
}

// splitRouter routes to the local client but holds a cloud client in
// reserve, mirroring the hybrid router's shape.
type splitRouter struct {
	local llm.Client
	cloud llm.Client
}

func (r *splitRouter) Route(query string) llm.Client { return r.local }
func (r *splitRouter) GetCloud() llm.Client          { return r.cloud }

func TestChatFallsBackToCloudOnLocalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no upstream call expected")
	}))
	t.Cleanup(srv.Close)

	client := elgoose.NewClient(srv.URL, zerolog.Nop())
	normalizer := elgoose.NewNormalizer(client, 1, zerolog.Nop())

	local := &erroringClient{}
	cloud := &scriptedClient{responses: []*llm.Response{
		{Content: "All good from up here.", StopReason: "end_turn"},
	}}

	ag := NewAgent(&splitRouter{local: local, cloud: cloud}, normalizer, zerolog.Nop())

	response, _, err := ag.Chat(context.Background(), "Where did they play last night?", nil)
	require.NoError(t, err)
	assert.Equal(t, "All good from up here.", response)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 1, cloud.calls)
}

func TestChatErrorTerminalWithoutCloud(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no upstream call expected")
	}))
	t.Cleanup(srv.Close)

	client := elgoose.NewClient(srv.URL, zerolog.Nop())
	normalizer := elgoose.NewNormalizer(client, 1, zerolog.Nop())

	local := &erroringClient{}
	ag := NewAgent(llm.ForceClient(local), normalizer, zerolog.Nop())

	_, _, err := ag.Chat(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, local.calls)
}

func TestConversationStoreCleanup(t *testing.T) {
	store := NewConversationStore()
	store.GetOrCreate("stale")
	store.GetOrCreate("fresh")

	stale := store.Get("stale")
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)

	store.Cleanup(24 * time.Hour)

	assert.Nil(t, store.Get("stale"))
	assert.NotNil(t, store.Get("fresh"))
}

func TestConversationStoreUpdate(t *testing.T) {
	store := NewConversationStore()
	store.GetOrCreate("conv")

	store.Update("conv", []Message{{Role: "user", Content: "hi"}})

	conv := store.Get("conv")
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hi", conv.Messages[0].Content)
}
