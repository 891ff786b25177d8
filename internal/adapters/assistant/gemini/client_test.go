package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainErrors "github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
	"github.com/monetalabs/moneta/internal/infrastructure/testutil"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		Model:   "gemini-2.0-flash",
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestClient_Send(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Role: "model", Parts: []part{{Text: "You spent 42.50 this week."}}}},
			},
		})
	}))
	defer server.Close()

	history := []*ledger.ChatMessage{
		testutil.NewUserMessage("How much did I spend?"),
		testutil.NewAssistantMessage("Checking your transactions."),
	}

	reply, err := testClient(server.URL).Send(context.Background(), history, "And this week?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply != "You spent 42.50 this week." {
		t.Errorf("Send() = %q", reply)
	}

	if len(gotReq.Contents) != 3 {
		t.Fatalf("request carried %d turns, want 3", len(gotReq.Contents))
	}
	if gotReq.Contents[1].Role != "model" {
		t.Errorf("assistant turn role = %q, want model", gotReq.Contents[1].Role)
	}
	if gotReq.Contents[2].Parts[0].Text != "And this week?" {
		t.Errorf("prompt = %q", gotReq.Contents[2].Parts[0].Text)
	}
}

func TestClient_Send_SkipsErrorTurns(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{
				{Content: content{Parts: []part{{Text: "ok"}}}},
			},
		})
	}))
	defer server.Close()

	failed := testutil.NewAssistantMessage("provider unavailable")
	failed.IsError = true
	history := []*ledger.ChatMessage{testutil.NewUserMessage("hi"), failed}

	if _, err := testClient(server.URL).Send(context.Background(), history, "again"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(gotReq.Contents) != 2 {
		t.Errorf("request carried %d turns, want 2 (error turn dropped)", len(gotReq.Contents))
	}
}

func TestClient_Send_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Send(context.Background(), nil, "hi"); err == nil {
		t.Error("Send() should fail on an empty candidate list")
	}
}

func TestClient_Send_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Send(context.Background(), nil, "hi")
	if domainErrors.CodeOf(err) != domainErrors.CodeAuth {
		t.Errorf("error code = %q, want %q", domainErrors.CodeOf(err), domainErrors.CodeAuth)
	}
}

func TestClient_Name(t *testing.T) {
	if got := testClient("").Name(); got != "gemini" {
		t.Errorf("Name() = %q, want gemini", got)
	}
}
