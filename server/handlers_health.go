package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/followspot/followspot/db"
)

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	var schemaVersion uint
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			// An empty snapshot table is ready, a missing one is not.
			var one int
			err := h.db.QueryRowContext(r.Context(),
				"SELECT 1 FROM follow_snapshot LIMIT 1").Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}},
		{"migrations", func() error {
			version, dirty, err := db.GetMigrationVersion(h.db)
			if err != nil {
				// The embedded fallback creates the schema without version
				// bookkeeping; absence is not a readiness failure.
				return nil
			}
			if dirty {
				return fmt.Errorf("migration version %d is dirty", version)
			}
			schemaVersion = version
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	resp := map[string]string{"status": "ready"}
	if schemaVersion > 0 {
		resp["schemaVersion"] = strconv.FormatUint(uint64(schemaVersion), 10)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
