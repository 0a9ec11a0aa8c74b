// Package handler provides HTTP handlers for the Dreamseeker push API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/models"
	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/response"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GatewayStatus reports whether the push gateway is usable.
type GatewayStatus interface {
	Configured() bool
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	gateway   GatewayStatus
}

// NewOpsHandler creates a new OpsHandler. db and gateway may be nil when
// the corresponding subsystem is not wired, e.g. in tests.
func NewOpsHandler(version, buildTime string, db Pinger, gateway GatewayStatus) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		gateway:   gateway,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	overall := models.HealthStatusOK
	var subsystems []models.SubsystemStatus

	dbStatus := models.HealthStatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = models.HealthStatusFail
			overall = models.HealthStatusDegraded
		}
	}
	subsystems = append(subsystems, models.SubsystemStatus{Name: "postgres", Status: dbStatus})

	gatewayStatus := models.HealthStatusOK
	if h.gateway == nil || !h.gateway.Configured() {
		gatewayStatus = models.HealthStatusDegraded
		overall = models.HealthStatusDegraded
	}
	subsystems = append(subsystems, models.SubsystemStatus{Name: "push-gateway", Status: gatewayStatus})

	status := models.SystemStatus{
		Status:     overall,
		Time:       now,
		Subsystems: subsystems,
	}
	response.JSON(w, r, http.StatusOK, status)
}
