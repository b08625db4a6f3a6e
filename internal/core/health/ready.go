package health

import (
	"encoding/json"
	"net/http"
)

// Report describes what the process has loaded.
type Report struct {
	Ready           bool
	Layers          int
	RegistryVersion string
	Cache           string
}

type ReadinessReporter interface {
	Readiness() Report
}

// ReporterFunc adapts a function to ReadinessReporter.
type ReporterFunc func() Report

func (f ReporterFunc) Readiness() Report { return f() }

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status          string `json:"status"`
			Layers          int    `json:"layers"`
			RegistryVersion string `json:"registryVersion,omitempty"`
			Cache           string `json:"cache,omitempty"`
		}
		rep := rr.Readiness()
		out := resp{Status: "not_ready", Layers: rep.Layers, Cache: rep.Cache}
		if rep.Ready {
			out.Status = "ready"
			out.RegistryVersion = rep.RegistryVersion
		}
		w.Header().Set("Content-Type", "application/json")
		if !rep.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
