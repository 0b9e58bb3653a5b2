package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/identra/internal/audit/domain"
)

type auditLogResponse struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	Success      bool           `json:"success"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	IPAddress    *string        `json:"ip_address,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	filter := auditdomain.ListFilter{
		Actor:  c.Query("actor"),
		Action: c.Query("action"),
		Limit:  100,
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("success"); raw != "" {
		if success, err := strconv.ParseBool(raw); err == nil {
			filter.Success = &success
		}
	}

	rows, err := s.auditRepo.List(c.Request.Context(), s.db, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]auditLogResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, auditLogResponse{
			ID:           row.ID,
			Actor:        row.Actor,
			Action:       row.Action,
			Success:      row.Success,
			ErrorMessage: row.ErrorMessage,
			IPAddress:    row.IPAddress,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": out})
}
