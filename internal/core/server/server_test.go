package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/knownlayers/internal/classifier"
	"github.com/mohammed-shakir/knownlayers/internal/core/config"
	"github.com/mohammed-shakir/knownlayers/internal/core/health"
	"github.com/mohammed-shakir/knownlayers/internal/knownlayer"
	"github.com/mohammed-shakir/knownlayers/internal/metrics"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
	"github.com/mohammed-shakir/knownlayers/internal/selector"
)

func slogDiscard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testDeps(t *testing.T) Deps {
	t.Helper()
	l, err := knownlayer.NewBuilder("boreholes", selector.NewKeyword([]string{"borehole"}, false)).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reg, err := registry.New(l)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return Deps{
		Classifier: classifier.New(reg, nil),
		Readiness: health.ReporterFunc(func() health.Report {
			return health.Report{Ready: true, Layers: reg.Len(), RegistryVersion: reg.Version()}
		}),
		Metrics: metrics.Init(metrics.Config{Enabled: true}).Handler(),
	}
}

func TestNewHandler_Routes(t *testing.T) {
	h := NewHandler(config.Config{MaxBatchRecords: 10}, slogDiscard(), testDeps(t))

	cases := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/layers", "", http.StatusOK},
		{http.MethodGet, "/layers/boreholes", "", http.StatusOK},
		{http.MethodGet, "/layers/missing", "", http.StatusNotFound},
		{http.MethodPost, "/classify", `[{"id":"r","keywords":["borehole"]}]`, http.StatusOK},
		{http.MethodGet, "/classify", "", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/classify", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.code {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.code, rr.Body)
			}
		})
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	deps := testDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, config.Config{Addr: addr}, slogDiscard(), deps) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
