package counter_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"counterhook/internal/api"
	"counterhook/internal/counter"
)

func TestClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api.NewServer(api.Config{}, counter.NewStore(10), logger).Router())
	defer srv.Close()

	client := counter.NewClient(srv.URL + "/api/")
	ctx := context.Background()

	ops := []struct {
		name string
		op   func(context.Context) (int, error)
		want int
	}{
		{"get", client.Get, 0},
		{"increment", client.Increment, 10},
		{"increment", client.Increment, 20},
		{"decrement", client.Decrement, 19},
		{"reset", client.Reset, 0},
	}

	for _, o := range ops {
		got, err := o.op(ctx)
		if err != nil {
			t.Fatalf("%s: %v", o.name, err)
		}
		if got != o.want {
			t.Errorf("%s = %d, want %d", o.name, got, o.want)
		}
	}
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := counter.NewClient(srv.URL).Get(context.Background()); err == nil {
		t.Error("expected error for non-200 status")
	}

	badJSON := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer badJSON.Close()

	if _, err := counter.NewClient(badJSON.URL).Get(context.Background()); err == nil {
		t.Error("expected error for invalid body")
	}

	unreachable := counter.NewClient("http://127.0.0.1:1")
	if _, err := unreachable.Get(context.Background()); err == nil {
		t.Error("expected connection error")
	}
}
