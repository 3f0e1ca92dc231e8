package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"answer":"x","results":[{"title":"T1","url":"https://a","content":"C1"},{"title":"T2","url":"https://b","content":"C2"}]}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "tv-key", BaseURL: srv.URL})
	results, err := c.Search(context.Background(), "verbal lease", 3)
	if err != nil {
		t.Fatalf("Search error = %v", err)
	}

	want := []Result{{"T1", "https://a", "C1"}, {"T2", "https://b", "C2"}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	wantReq := searchRequest{APIKey: "tv-key", Query: "verbal lease", IncludeAnswer: true, MaxResults: 3}
	if diff := cmp.Diff(wantReq, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_Disabled(t *testing.T) {
	c := New(Config{})
	if c.Enabled() {
		t.Fatal("client without key reports enabled")
	}
	_, err := c.Search(context.Background(), "q", 3)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Search error = %v, want ErrDisabled", err)
	}
}

func TestSearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"bad key"}`)
	}))
	defer srv.Close()

	_, err := New(Config{APIKey: "bad", BaseURL: srv.URL}).Search(context.Background(), "q", 3)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Errorf("Search error = %v, want 401 StatusError", err)
	}
}

func TestSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, RatePerSecond: 0.5, Burst: 1})
	if _, err := c.Search(context.Background(), "first", 3); err != nil {
		t.Fatalf("first Search error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, "second", 3); err == nil {
		t.Error("second Search inside the rate window succeeded, want limiter error")
	}
}

func TestStatusError_TruncatesOnRuneBoundary(t *testing.T) {
	err := &StatusError{StatusCode: 500, Body: strings.Repeat("ü", 400)}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("Error() is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, strings.Repeat("ü", 300)+"...") {
		t.Errorf("Error() = %q, want 300 runes then ...", msg)
	}
}
