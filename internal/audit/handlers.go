package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/container-tracker/internal/common"
)

// Handler exposes the attempt log over HTTP.
type Handler struct {
	Store Store
}

// List returns attempt entries, newest first, optionally for one container.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "tracking log store not configured", nil)
		return
	}
	offset, limit := common.ParseOffsetLimit(r, 50, 200)
	entries, err := h.Store.ListAttempts(r.Context(), ListFilter{
		ContainerNo: strings.TrimSpace(r.URL.Query().Get("container_no")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch tracking logs", nil)
		return
	}
	common.JSONSuccess(w, http.StatusOK, "", entries)
}
