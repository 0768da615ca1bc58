package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/retry"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		var req chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		payload := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "demo"},
		&apiclient.Client{HTTP: srv.Client(), Retry: retry.Policy{MaxAttempts: 1}})
}

func TestGenerateScenes(t *testing.T) {
	srv := completionServer(t, "```json\n"+`{"scenes":[
		{"scene_number":4,"description":"A busy city street","narration":"Cities never sleep.","search_query":"city traffic night","duration":6},
		{"description":"Sunrise over hills","narration":"But mornings are calm."}
	]}`+"\n```")
	defer srv.Close()

	scenes, err := testClient(srv).GenerateScenes(context.Background(), SceneRequest{Script: "Cities never sleep. But mornings are calm."})
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, 1, scenes[0].SceneNumber)
	assert.Equal(t, 6.0, scenes[0].Duration)
	assert.Equal(t, 2, scenes[1].SceneNumber)
	assert.Equal(t, DefaultSceneDuration, scenes[1].Duration)
	assert.Equal(t, "Sunrise over hills", scenes[1].SearchQuery)
}

func TestGenerateScenesRequiresScript(t *testing.T) {
	c := NewClient(Config{APIKey: "x"}, nil)
	_, err := c.GenerateScenes(context.Background(), SceneRequest{Script: "  "})
	assert.Error(t, err)
}

func TestCompleteJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer srv.Close()
	_, err := testClient(srv).CompleteJSON(context.Background(), "sys", "user", 0)
	assert.Error(t, err)
}

func TestClampScenes(t *testing.T) {
	assert.Equal(t, DefaultScenes, ClampScenes(0))
	assert.Equal(t, 1, ClampScenes(-3))
	assert.Equal(t, 12, ClampScenes(40))
	assert.Equal(t, 7, ClampScenes(7))
}

func TestParseScenesVariants(t *testing.T) {
	scenes, err := ParseScenes(`Here you go: [{"description":"a"},{"description":"b"},{"description":"c"}]`, 2)
	require.NoError(t, err)
	assert.Len(t, scenes, 2)

	_, err = ParseScenes(`{"scenes":[]}`, 3)
	assert.Error(t, err)

	_, err = ParseScenes(`not json at all`, 3)
	assert.Error(t, err)
}

func TestNormalizeScenesSkipsEmptyAndCapsDuration(t *testing.T) {
	out := NormalizeScenes([]model.Scene{
		{Description: " "},
		{Description: "ocean", Duration: 120},
	}, 5)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].SceneNumber)
	assert.Equal(t, 30.0, out[0].Duration)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, DecodeJSON(`{"ok":true}`, &v))
	assert.True(t, v.OK)

	v.OK = false
	require.NoError(t, DecodeJSON("Sure!\n```json\n{\"ok\":true}\n```\nanything else?", &v))
	assert.True(t, v.OK)

	assert.Error(t, DecodeJSON("", &v))
}
