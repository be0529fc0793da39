package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orbit/providers"
)

func TestGenerateSendsRequestAndReadsText(t *testing.T) {
	var (
		gotPath string
		gotUA   string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"title\":"},{"text":"\"X\"}"}]}}]}`)
	}))
	defer server.Close()

	client, err := New(context.Background(), "test-key", Options{
		Model:      "test-model",
		BaseURL:    server.URL,
		HTTPClient: NewHTTPClient(5 * time.Second),
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	text, err := client.Generate(context.Background(), providers.Request{
		SystemInstruction: "be precise",
		Turns: []providers.Turn{{
			Role: providers.RoleUser,
			Parts: []providers.Part{
				{Data: []byte("%PDF-1.4"), MimeType: "application/pdf"},
				{Text: "analyze"},
			},
		}},
		JSONResponse: true,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if text != `{"title":"X"}` {
		t.Fatalf("unexpected text %q", text)
	}

	if !strings.HasSuffix(gotPath, "/models/test-model:generateContent") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.HasPrefix(gotUA, "orbit/1.0") {
		t.Fatalf("user agent not set: %q", gotUA)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Fatalf("system instruction missing: %v", gotBody)
	}
	raw, _ := json.Marshal(gotBody)
	for _, want := range []string{`"responseMimeType":"application/json"`, `"inlineData"`, `"text":"analyze"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("request body lacks %s: %s", want, raw)
		}
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	client, err := New(context.Background(), "test-key", Options{Model: "test-model", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	text, err := client.Generate(context.Background(), providers.Request{
		Turns: []providers.Turn{{Role: providers.RoleUser, Parts: []providers.Part{{Text: "hi"}}}},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestGenerateSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	}))
	defer server.Close()

	client, err := New(context.Background(), "bad-key", Options{Model: "test-model", BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Generate(context.Background(), providers.Request{
		Turns: []providers.Turn{{Role: providers.RoleUser, Parts: []providers.Part{{Text: "hi"}}}},
	})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected the API error, got %v", err)
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New(context.Background(), "  ", Options{Model: "m"}, nil); err == nil {
		t.Fatal("expected an error for an empty key")
	}
}
