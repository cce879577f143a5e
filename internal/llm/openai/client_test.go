package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

type capturedRequest struct {
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeOpenAI answers /v1/chat/completions with content, or with status when non-zero.
func fakeOpenAI(t *testing.T, content string, status int, seen *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(baseURL string) *Client {
	return NewClient(Config{APIKey: "sk-test", BaseURL: baseURL + "/v1", Timeout: 5 * time.Second}, nil)
}

func TestExtractFieldsSendsJSONModeRequest(t *testing.T) {
	var seen capturedRequest
	content := "```json\n{\"student_name\":\"Prashant Singh\",\"enrollment_number\":\"231B225\",\"cgpa\":6.1,\"branch\":\"null\"}\n```"
	srv := fakeOpenAI(t, content, 0, &seen)

	fields, raw, err := testClient(srv.URL).ExtractFields(context.Background(), "Enrollment No: 231B225")
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if len(raw) == 0 {
		t.Errorf("want raw JSON")
	}
	if fields.String(llm.KeyStudentName) != "Prashant Singh" || fields.String(llm.KeyCGPA) != "6.1" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields[llm.KeyBranch] != nil {
		t.Errorf("branch: want nil, got %#v", fields[llm.KeyBranch])
	}

	if seen.Model != "gpt-4o-mini" {
		t.Errorf("model: got %q", seen.Model)
	}
	if seen.MaxTokens != extractMaxTokens {
		t.Errorf("max_tokens: got %d", seen.MaxTokens)
	}
	if seen.ResponseFormat == nil || seen.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format: got %+v", seen.ResponseFormat)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != "user" {
		t.Errorf("messages: got %+v", seen.Messages)
	}
}

func TestExtractFieldsWithoutKeyIsConfigurationError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1"}, nil)
	_, _, err := c.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
	if _, err := c.Summarize(context.Background(), llm.NewFields()); !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("summary: want ErrConfiguration, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("no request should be sent without a key")
	}
}

func TestExtractFieldsUpstreamErrorIsExtractionError(t *testing.T) {
	srv := fakeOpenAI(t, "", http.StatusInternalServerError, nil)
	_, _, err := testClient(srv.URL).ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("want ErrExtraction, got %v", err)
	}
}

func TestExtractFieldsGarbageIsInvalidResponse(t *testing.T) {
	srv := fakeOpenAI(t, "I could not find any certificate here.", 0, nil)
	_, _, err := testClient(srv.URL).ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrInvalidResponse) {
		t.Fatalf("want ErrInvalidResponse, got %v", err)
	}
}

func TestExtractFieldsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: 50 * time.Millisecond}, nil)
	_, _, err := c.ExtractFields(context.Background(), "text")
	if !errors.Is(err, common.ErrExtraction) {
		t.Fatalf("want ErrExtraction, got %v", err)
	}
}

func TestSummarizeReturnsSingleLine(t *testing.T) {
	var seen capturedRequest
	srv := fakeOpenAI(t, "\"Prashant Singh - B.Tech CSE\nfrom Jaypee University (CGPA: 6.1)\"", 0, &seen)

	fields := llm.NewFields()
	fields[llm.KeyStudentName] = "Prashant Singh"
	got, err := testClient(srv.URL).Summarize(context.Background(), fields)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := "Prashant Singh - B.Tech CSE from Jaypee University (CGPA: 6.1)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if seen.MaxTokens != summaryMaxTokens {
		t.Errorf("max_tokens: got %d", seen.MaxTokens)
	}
	if seen.ResponseFormat != nil {
		t.Errorf("summary must not request JSON mode")
	}
}

func TestSummarizeUpstreamErrorIsSummaryError(t *testing.T) {
	srv := fakeOpenAI(t, "", http.StatusBadGateway, nil)
	_, err := testClient(srv.URL).Summarize(context.Background(), llm.NewFields())
	if !errors.Is(err, common.ErrSummary) {
		t.Fatalf("want ErrSummary, got %v", err)
	}
}

func TestResolveProvider(t *testing.T) {
	r := resolve(Config{APIKey: "sk-or-v1-abc"})
	if r.BaseURL != openRouterBaseURL || r.provider != "openrouter" {
		t.Errorf("openrouter key: got base %q provider %q", r.BaseURL, r.provider)
	}
	if r.Model != "openai/gpt-4o-mini" {
		t.Errorf("openrouter model: got %q", r.Model)
	}

	r = resolve(Config{APIKey: "sk-plain", Model: "gpt-4o"})
	if r.BaseURL != "" || r.Model != "gpt-4o" || r.provider != "openai" {
		t.Errorf("openai key: got %+v", r)
	}

	r = resolve(Config{APIKey: "sk-plain", BaseURL: "http://localhost:8080/v1/"})
	if r.BaseURL != "http://localhost:8080/v1" || r.provider != "custom" || r.Model != "gpt-4o-mini" {
		t.Errorf("custom base: got %+v", r)
	}
}

func TestSelectEngine(t *testing.T) {
	if got := SelectEngine(Config{}, true, nil).Mode(); got != llm.ModeFallback {
		t.Errorf("no key + fallback: got %s", got)
	}
	if got := SelectEngine(Config{}, false, nil).Mode(); got != llm.ModeAI {
		t.Errorf("no key, no fallback: got %s", got)
	}
	if got := SelectEngine(Config{APIKey: "sk-test"}, true, nil).Mode(); got != llm.ModeAI {
		t.Errorf("key present: got %s", got)
	}
}
