// Package handlers contains the HTTP handlers for the study-guide API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/graceverse/study-api/internal/version"
)

type statusBody struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HealthOutput is the health/liveness/readiness response.
type HealthOutput struct {
	Body statusBody
}

// HealthCheck reports that the API is up, with the running build version.
func HealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: statusBody{Status: "healthy", Version: version.Get().Short()}}, nil
}

// Livez answers liveness probes: 200 whenever the process is running.
func Livez(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{Body: statusBody{Status: "ok"}}, nil
}

// DBPinger is the slice of *sql.DB the readiness probe needs.
type DBPinger interface {
	Ping() error
}

// ReadyzHandler answers readiness probes, gating on database connectivity.
type ReadyzHandler struct {
	db DBPinger
}

func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz returns 200 once the service can reach its database.
func (h *ReadyzHandler) Readyz(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable: " + err.Error())
		}
	}
	return &HealthOutput{Body: statusBody{Status: "ok"}}, nil
}
