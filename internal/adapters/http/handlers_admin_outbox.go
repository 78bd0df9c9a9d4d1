package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"studio/internal/domain/outbox"
)

// handleAdminOutbox handles GET /studioadmin/outbox?status=all&limit=<n>
// Lists emails that ran out of attempts, or with status=all those still queued.
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = outbox.StatusFailed
	}

	var entries []outbox.Entry
	var err error
	if status == "all" {
		entries, err = stores.OutboxStore.ListPending(ctx, limit)
	} else {
		entries, err = stores.OutboxStore.ListFailed(ctx, limit)
	}
	if err != nil {
		internalError(w, err)
		return
	}
	counts, err := stores.OutboxStore.CountByStatus(ctx)
	if err != nil {
		internalError(w, err)
		return
	}

	if isHTMLRequest(r) {
		renderTemplate(w, r, "admin_outbox.html", map[string]any{
			"Entries": entries,
			"Counts":  counts,
			"Status":  status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"counts":  counts,
	})
}

// handleAdminOutboxAction handles POST /studioadmin/outbox/{id}/retry and /studioadmin/outbox/{id}/abandon
func handleAdminOutboxAction(w http.ResponseWriter, r *http.Request) {
	if outboxProcessor == nil {
		http.Error(w, "outbox is not running", http.StatusServiceUnavailable)
		return
	}
	entryID := r.PathValue("id")

	var status string
	switch r.PathValue("action") {
	case "retry":
		if err := outboxProcessor.ProcessSingle(r.Context(), entryID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status = "retry triggered"
	case "abandon":
		if err := outboxProcessor.AbandonEntry(r.Context(), entryID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status = "abandoned"
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	if isHTMLRequest(r) {
		http.Redirect(w, r, "/studioadmin/outbox", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleAdminPerf handles GET /studioadmin/perf?minutes=<n>
// Returns request latency stats from the in-memory collector.
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if perfCollector == nil {
		http.Error(w, "timing is disabled", http.StatusServiceUnavailable)
		return
	}
	minutes := 60
	if n, err := strconv.Atoi(r.URL.Query().Get("minutes")); err == nil && n > 0 {
		minutes = n
	}
	snap := perfCollector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}
