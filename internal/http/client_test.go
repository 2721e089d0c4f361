package http

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/spdl/spdl/internal/config"
)

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewRetryClient(&config.Config{ProxyMode: config.ProxyModeNone}, nil)
	if err != nil {
		t.Fatalf("NewRetryClient() error = %v", err)
	}
	client.RetryMax = 0

	results := Probe(context.Background(), client, []string{srv.URL, "http://127.0.0.1:1"})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].OK() || results[0].Status != nethttp.StatusNoContent {
		t.Errorf("reachable server result = %+v", results[0])
	}
	if results[1].OK() {
		t.Errorf("closed port should not be OK: %+v", results[1])
	}
}

func TestProbe_ServerErrorStillReachable(t *testing.T) {
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewRetryClient(&config.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	client.RetryMax = 0

	res := Probe(context.Background(), client, []string{srv.URL})[0]
	if !res.OK() || res.Status != nethttp.StatusServiceUnavailable {
		t.Errorf("result = %+v, want reachable with 503", res)
	}
}
