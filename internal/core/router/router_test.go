package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/knownlayers/internal/classifier"
	"github.com/mohammed-shakir/knownlayers/internal/knownlayer"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
	"github.com/mohammed-shakir/knownlayers/internal/selector"
)

func newTestRouter(t *testing.T, maxBatch int) (http.Handler, *registry.Registry) {
	t.Helper()
	mk := func(id, order string, hidden bool, sel selector.Selector) *knownlayer.KnownLayer {
		b := knownlayer.NewBuilder(id, sel)
		b.SetName(id)
		b.SetOrder(&order)
		b.SetHidden(hidden)
		l, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return l
	}
	reg, err := registry.New(
		mk("wms", "20", false, selector.NewService([]string{"WMS"}, nil)),
		mk("boreholes", "10", false, selector.NewKeyword([]string{"borehole"}, false)),
		mk("internal", "30", true, selector.NewIdentifier(nil, []string{"int-"})),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := New(nil, classifier.New(reg, nil), maxBatch)

	r := chi.NewRouter()
	r.Get("/layers", h.ListLayers())
	r.Get("/layers/{id}", h.GetLayer())
	r.With(Limit).Post("/classify", h.Classify())
	return r, reg
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func layerIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var views []knownlayer.View
	if err := json.Unmarshal(body, &views); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func TestListLayers_VisibleInOrder(t *testing.T) {
	h, reg := newTestRouter(t, 0)
	rr := do(t, h, http.MethodGet, "/layers", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	if got := rr.Header().Get("X-Registry-Version"); got != reg.Version() {
		t.Fatalf("version header=%q want %q", got, reg.Version())
	}
	if diff := cmp.Diff([]string{"boreholes", "wms"}, layerIDs(t, rr.Body.Bytes())); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}

	rr = do(t, h, http.MethodGet, "/layers?hidden=true", "")
	if diff := cmp.Diff([]string{"boreholes", "wms", "internal"}, layerIDs(t, rr.Body.Bytes())); diff != "" {
		t.Fatalf("ids with hidden (-want +got):\n%s", diff)
	}

	rr = do(t, h, http.MethodGet, "/layers?hidden=maybe", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
}

func TestGetLayer(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	rr := do(t, h, http.MethodGet, "/layers/internal", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var v knownlayer.View
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ID != "internal" || !v.Hidden {
		t.Fatalf("unexpected view %+v", v)
	}

	rr = do(t, h, http.MethodGet, "/layers/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestClassify_OK(t *testing.T) {
	h, reg := newTestRouter(t, 0)
	body := `[
		{"id":"a","keywords":["Borehole"],"onlineResources":[{"type":"WMS","url":"http://x"}]},
		{"id":"b","keywords":["geology"]},
		{"id":"int-1"}
	]`
	rr := do(t, h, http.MethodPost, "/classify", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var got struct {
		Version  string              `json:"registryVersion"`
		Members  map[string][]string `json:"members"`
		Unmapped []string            `json:"unmapped"`
		Counts   map[string]int      `json:"counts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != reg.Version() {
		t.Fatalf("version=%q want %q", got.Version, reg.Version())
	}
	wantMembers := map[string][]string{"a": {"boreholes", "wms"}, "int-1": {"internal"}}
	if diff := cmp.Diff(wantMembers, got.Members); diff != "" {
		t.Fatalf("members (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, got.Unmapped); diff != "" {
		t.Fatalf("unmapped (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"boreholes": 1, "wms": 1, "internal": 1}, got.Counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
}

func TestClassify_EmptyArray(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	rr := do(t, h, http.MethodPost, "/classify", `[]`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"unmapped":[]`) {
		t.Fatalf("unmapped should encode as an empty array: %s", rr.Body)
	}
}

func TestClassify_BadRequests(t *testing.T) {
	h, _ := newTestRouter(t, 2)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"not json", "nope", http.StatusBadRequest},
		{"object not array", `{"id":"a"}`, http.StatusBadRequest},
		{"trailing data", `[] []`, http.StatusBadRequest},
		{"missing id", `[{"title":"x"}]`, http.StatusBadRequest},
		{"too many", `[{"id":"a"},{"id":"b"},{"id":"c"}]`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/classify", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.want, rr.Body)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"": false, "true": true, "1": true, " false ": false} {
		got, err := parseBool(in)
		if err != nil || got != want {
			t.Fatalf("parseBool(%q)=%t,%v want %t", in, got, err, want)
		}
	}
	if _, err := parseBool("yes please"); err == nil {
		t.Fatalf("expected error")
	}
}
