// Package router holds the HTTP handlers of the known layer API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/core/observability"
	"github.com/mohammed-shakir/knownlayers/internal/knownlayer"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
)

const maxBodyBytes = 16 << 20

// Classifier classifies request batches against a registry.
type Classifier interface {
	Classify(ctx context.Context, source string, records []model.CSWRecord) (registry.Classification, error)
	Registry() *registry.Registry
}

type Handlers struct {
	logger   *slog.Logger
	cls      Classifier
	maxBatch int
}

func New(logger *slog.Logger, cls Classifier, maxBatch int) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, cls: cls, maxBatch: maxBatch}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency under route.
func instrument(route string, fn func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

// ListLayers serves the layers in display order. Hidden layers are left out
// unless hidden=true.
func (h *Handlers) ListLayers() http.HandlerFunc {
	return instrument("/layers", func(w http.ResponseWriter, r *http.Request) {
		includeHidden, err := parseBool(r.URL.Query().Get("hidden"))
		if err != nil {
			http.Error(w, "invalid hidden parameter: "+err.Error(), http.StatusBadRequest)
			return
		}
		reg := h.cls.Registry()
		layers := reg.Visible()
		if includeHidden {
			layers = reg.Layers()
		}
		if layers == nil {
			layers = []*knownlayer.KnownLayer{}
		}
		w.Header().Set("X-Registry-Version", reg.Version())
		writeJSON(w, http.StatusOK, layers)
	})
}

func (h *Handlers) GetLayer() http.HandlerFunc {
	return instrument("/layers/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		l, ok := h.cls.Registry().Get(id)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown layer %q", id), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, l)
	})
}

type classifyResponse struct {
	Version string `json:"registryVersion"`
	registry.Classification
}

// Classify accepts a JSON array of records and returns their layer
// memberships.
func (h *Handlers) Classify() http.HandlerFunc {
	return instrument("/classify", func(w http.ResponseWriter, r *http.Request) {
		records, err := decodeRecords(r.Body, h.maxBatch)
		if err != nil {
			h.logger.DebugContext(r.Context(), "rejecting classify request", "err", err)
			code := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || errors.Is(err, errTooManyRecords) {
				code = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), code)
			return
		}

		out, err := h.cls.Classify(r.Context(), "http", records)
		if err != nil {
			h.logger.WarnContext(r.Context(), "classify failed", "records", len(records), "err", err)
			http.Error(w, "classification aborted: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, classifyResponse{
			Version:        h.cls.Registry().Version(),
			Classification: out,
		})
	})
}

// Limit caps request bodies at maxBodyBytes.
func Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

var errTooManyRecords = errors.New("too many records")

func decodeRecords(body io.Reader, maxBatch int) ([]model.CSWRecord, error) {
	dec := json.NewDecoder(body)
	var records []model.CSWRecord
	if err := dec.Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body: expected a JSON array of records")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode records: trailing data after array")
	}
	if maxBatch > 0 && len(records) > maxBatch {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", errTooManyRecords, len(records), maxBatch)
	}
	for i, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
	}
	return records, nil
}

func parseBool(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse bool: %w", err)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
