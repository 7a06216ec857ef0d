package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the current snapshot as JSON. It is mounted on the admin
// listener, not the public API, so the public surface keeps its strict
// routing contract.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
