package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geminiText wraps text in the generateContent response envelope.
func geminiText(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

// newTestClient points a Client at a fake Gemini endpoint that replies
// with the given text bodies in order, cycling on the last one.
func newTestClient(t *testing.T, bodies ...string) (*Client, *int) {
	t.Helper()
	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := *calls
		*calls++
		if i >= len(bodies) {
			i = len(bodies) - 1
		}
		fmt.Fprint(w, bodies[i])
	}))
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL)), calls
}

func TestGenerate(t *testing.T) {
	var gotPath string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, geminiText("hello"))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("gemini-test"))
	text, err := c.Generate(context.Background(), "say hello")
	require.NoError(t, err)

	assert.Equal(t, "hello", text)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "say hello", gotReq.Contents[0].Parts[0].Text)
}

func TestGenerateStripsCodeFence(t *testing.T) {
	c, _ := newTestClient(t, geminiText("```json\n{\"a\": 1}\n```"))

	text, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, text)
}

func TestGenerateNoCandidates(t *testing.T) {
	c, _ := newTestClient(t, `{"candidates": []}`)

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                       `{"a":1}`,
		"```json\n{\"a\":1}\n```":         `{"a":1}`,
		"```\n{\"a\":1}\n```":             `{"a":1}`,
		"  ```json\n  {\"a\":1}\n  ```  ": `{"a":1}`,
		"no fences, just text":            "no fences, just text",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripMarkdownCodeBlock(in), "input %q", in)
	}
}
