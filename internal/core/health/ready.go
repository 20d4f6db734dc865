package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter tells whether the timezone dataset is loaded.
type ReadinessReporter interface {
	Readiness() (ready bool, dataset string)
}

// ReadyFunc adapts a function to ReadinessReporter.
type ReadyFunc func() (bool, string)

func (f ReadyFunc) Readiness() (bool, string) { return f() }

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status  string `json:"status"`
			Dataset string `json:"dataset,omitempty"`
		}
		ready, ds := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.Dataset = ds
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
