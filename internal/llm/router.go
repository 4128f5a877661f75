package llm

import (
	"context"
	"strings"
)

// HybridRouter picks a client per query: complex aggregate questions
// go to Claude, simple lookups can stay on a local Ollama model when
// one is running and preferred. Local availability is checked once at
// construction.
type HybridRouter struct {
	localClient *OllamaClient
	cloudClient *ClaudeClient
	preferLocal bool
	localAvail  bool
}

func NewHybridRouter(ollamaURL, ollamaModel, claudeAPIKey, claudeModel string, preferLocal bool) *HybridRouter {
	router := &HybridRouter{
		preferLocal: preferLocal,
	}

	if ollamaURL != "" || preferLocal {
		router.localClient = NewOllamaClient(ollamaURL, ollamaModel)
		router.localAvail = router.localClient.IsAvailable(context.Background())
	}

	if claudeAPIKey != "" {
		router.cloudClient = NewClaudeClient(claudeAPIKey, claudeModel)
	}

	return router
}

func (r *HybridRouter) Route(query string) Client {
	if r.isComplexQuery(query) && r.cloudClient != nil {
		return r.cloudClient
	}

	if r.preferLocal && r.localAvail && r.localClient != nil {
		return r.localClient
	}

	if r.cloudClient != nil {
		return r.cloudClient
	}

	if r.localClient != nil {
		return r.localClient
	}

	return nil
}

// GetCloud hands out the cloud client so a turn that failed on the
// local model can be retried. Returns an untyped nil when no cloud
// client is configured; callers compare against nil, not the concrete
// type.
func (r *HybridRouter) GetCloud() Client {
	if r.cloudClient == nil {
		return nil
	}
	return r.cloudClient
}

func (r *HybridRouter) LocalAvailable() bool {
	return r.localAvail
}

// isComplexQuery is a rough heuristic: aggregate or comparative
// questions need multiple tool calls and benefit from the cloud model,
// simple lookups are fine locally.
func (r *HybridRouter) isComplexQuery(query string) bool {
	query = strings.ToLower(query)

	complexIndicators := []string{
		"compare",
		"most played",
		"most-played",
		"top ",
		"why",
		"explain",
		"every year",
		"across all",
		"all time",
		"history of",
		"how often",
		"trend",
	}

	for _, indicator := range complexIndicators {
		if strings.Contains(query, indicator) {
			return true
		}
	}

	simpleIndicators := []string{
		"list",
		"show",
		"get",
		"what is",
		"when did",
		"setlist",
		"latest",
	}

	for _, indicator := range simpleIndicators {
		if strings.Contains(query, indicator) {
			return false
		}
	}

	return len(query) > 100
}

type ForcedClient struct {
	client Client
}

func ForceClient(c Client) *ForcedClient {
	return &ForcedClient{client: c}
}

func (f *ForcedClient) Route(query string) Client {
	return f.client
}
