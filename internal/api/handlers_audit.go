package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/org/skillgate/internal/storage"
	"github.com/org/skillgate/pkg/models"
	"github.com/rs/zerolog/log"
)

// AuditLogHandler handles GET /v1/sys/audit-log
func (s *Server) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AuditFilter{
		Action: q.Get("action"),
		Limit:  100,
	}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err == nil {
			filter.Since = &t
		}
	}

	entries, err := s.auditor.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

// AuditVerifyHandler handles GET /v1/sys/audit/verify. It walks the whole
// chain; a broken link is reported with the first offending sequence and
// escalated through the logs and the break counter.
func (s *Server) AuditVerifyHandler(w http.ResponseWriter, r *http.Request) {
	intact, firstBroken, err := s.auditor.VerifyChain(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !intact {
		auditChainBreaksTotal.Inc()
		log.Error().Err(models.ErrChainBroken).Int64("sequence", firstBroken).Msg("audit chain verification failed")
		writeJSON(w, http.StatusOK, map[string]any{
			"intact":       false,
			"first_broken": firstBroken,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"intact": true})
}
