package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestErrorMatchesUnavailable(t *testing.T) {
	err := fmt.Errorf("compose: %w", &Error{Provider: "ollama", Kind: KindTimeout, Err: context.DeadlineExceeded})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatal("expected ErrUnavailable")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected cause to be preserved")
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("other")) != "" {
		t.Fatal("KindOf(plain error) should be empty")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		want     Kind
	}{
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), false, KindTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, false, KindTimeout},
		{"refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, false, KindConnection},
		{"dns", &net.DNSError{Err: "no such host", Name: "ollama"}, false, KindConnection},
		{"not found", errors.New("404"), true, KindModelNotFound},
		{"other", errors.New("bad request"), false, KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err, tt.notFound); got != tt.want {
				t.Fatalf("classify = %q, want %q", got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestGeminiNotFound(t *testing.T) {
	if !geminiNotFound(fmt.Errorf("call: %w", genai.APIError{Code: 404, Message: "models/x is not found"})) {
		t.Fatal("expected not found")
	}
	if geminiNotFound(genai.APIError{Code: 429}) {
		t.Fatal("429 is not a missing model")
	}
}

func newOllamaServer(t *testing.T, h http.HandlerFunc) *Ollama {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	o, err := NewOllama(srv.URL, "llama3.2:3b", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestOllamaGenerate(t *testing.T) {
	var got struct {
		Model   string         `json:"model"`
		Prompt  string         `json:"prompt"`
		Stream  *bool          `json:"stream"`
		Options map[string]any `json:"options"`
	}
	o := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama3.2:3b","response":"  Love is patient, Alice. ","done":true}`)
	})

	text, err := o.Generate(context.Background(), "prompt", Params{MaxTokens: 150, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Love is patient, Alice." {
		t.Fatalf("text = %q", text)
	}
	if got.Model != "llama3.2:3b" || got.Prompt != "prompt" {
		t.Fatalf("request = %+v", got)
	}
	if got.Stream == nil || *got.Stream {
		t.Fatal("expected stream=false")
	}
	if got.Options["num_predict"] != float64(150) || got.Options["temperature"] != 0.7 {
		t.Fatalf("options = %v", got.Options)
	}
	if stop, _ := got.Options["stop"].([]any); len(stop) != 3 {
		t.Fatalf("stop = %v", got.Options["stop"])
	}
}

func TestOllamaModelNotFound(t *testing.T) {
	o := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"llama3.2:3b\" not found, try pulling it first"}`)
	})
	_, err := o.Generate(context.Background(), "prompt", Params{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if KindOf(err) != KindModelNotFound {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestOllamaTimeout(t *testing.T) {
	o := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	o.Timeout = 50 * time.Millisecond
	_, err := o.Generate(context.Background(), "prompt", Params{})
	if KindOf(err) != KindTimeout {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestOllamaConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o, err := NewOllama(url, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	_, err = o.Generate(context.Background(), "prompt", Params{})
	if KindOf(err) != KindConnection {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestOllamaEmptyResponse(t *testing.T) {
	o := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model":"llama3.2:3b","response":"","done":true}`)
	})
	_, err := o.Generate(context.Background(), "prompt", Params{})
	if KindOf(err) != KindEmpty || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestOllamaCheck(t *testing.T) {
	o := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"nomic-embed-text:latest","model":"nomic-embed-text:latest"},{"name":"llama3.2:3b","model":"llama3.2:3b"}]}`)
	})
	ok, err := o.Check(context.Background())
	if err != nil || !ok {
		t.Fatalf("Check = %v, %v", ok, err)
	}
	o.Model = "mistral"
	ok, err = o.Check(context.Background())
	if err != nil || ok {
		t.Fatalf("Check(mistral) = %v, %v", ok, err)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "missing" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":%q,"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"max=%d"}}]}`, req.Model, req.MaxTokens)
	}))
	defer srv.Close()

	g := NewOpenAI("k", srv.URL, "gpt-4o-mini", time.Second)
	text, err := g.Generate(context.Background(), "hi", Params{MaxTokens: 150, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "max=150" {
		t.Fatalf("text = %q", text)
	}

	g.Model = "missing"
	_, err = g.Generate(context.Background(), "hi", Params{})
	if KindOf(err) != KindModelNotFound {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Model == "missing" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"type":"error","error":{"type":"not_found_error","message":"model: missing"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"Hello there."}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":3}}`)
	}))
	defer srv.Close()

	a := NewAnthropic("k", srv.URL, "", time.Second)
	text, err := a.Generate(context.Background(), "hi", Params{MaxTokens: 150})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Hello there." {
		t.Fatalf("text = %q", text)
	}

	a.Model = "missing"
	_, err = a.Generate(context.Background(), "hi", Params{})
	if KindOf(err) != KindModelNotFound {
		t.Fatalf("kind = %q, err = %v", KindOf(err), err)
	}
}
