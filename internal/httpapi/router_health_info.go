package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady only checks persistence; with persistence disabled the process
// is ready as soon as it serves.
func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store != nil {
		if err := r.deps.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":           "group-warden",
		"version":        r.deps.Version,
		"environment":    r.deps.Config.Environment,
		"update_mode":    r.deps.Config.UpdateMode,
		"expiry_action":  r.deps.Config.ExpiryAction,
		"admin_count":    len(r.deps.Config.AdminIDs),
		"persist_grants": r.deps.Config.PersistGrants,
	}
	if r.deps.Links != nil {
		payload["link_lock"] = r.deps.Links.Locked()
	}
	writeJSON(w, http.StatusOK, payload)
}
