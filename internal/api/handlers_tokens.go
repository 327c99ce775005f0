package api

import (
	"net/http"
	"time"

	"github.com/org/skillgate/pkg/models"
)

// TokenIssueHandler handles POST /v1/auth/token/issue
func (s *Server) TokenIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string   `json:"subject"`
		Scope   []string `json:"scope"`
		TTL     string   `json:"ttl"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if len(req.Scope) == 0 {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	ttl := s.cfg.TokenTTL
	if req.TTL != "" {
		var err error
		ttl, err = time.ParseDuration(req.TTL)
		if err != nil || ttl <= 0 {
			writeError(w, http.StatusBadRequest, "invalid ttl format")
			return
		}
	}

	signed, jti, err := s.tokens.Issue(r.Context(), req.Subject, req.Scope, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.updateTokenGauge(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"auth": map[string]any{
			"token":          signed,
			"jti":            jti,
			"scope":          req.Scope,
			"lease_duration": int(ttl.Seconds()),
		},
	})
}

// TokenRevokeHandler handles POST /v1/auth/token/revoke
func (s *Server) TokenRevokeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JTI    string `json:"jti"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JTI == "" {
		writeError(w, http.StatusBadRequest, "jti is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "operator revocation"
	}

	if err := s.tokens.Revoke(r.Context(), req.JTI, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.updateTokenGauge(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// TokenListHandler handles GET /v1/auth/token. Each record carries a
// derived status so an operator can see dead credentials at a glance.
func (s *Server) TokenListHandler(w http.ResponseWriter, r *http.Request) {
	metas, err := s.tokens.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type tokenRecord struct {
		*models.AccessTokenMetadata
		Status string `json:"status"`
	}
	records := make([]tokenRecord, 0, len(metas))
	for _, m := range metas {
		status := "active"
		switch {
		case m.IsRevoked():
			status = "revoked"
		case m.IsExpired():
			status = "expired"
		}
		records = append(records, tokenRecord{m, status})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}
