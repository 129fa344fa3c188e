package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// MailStatus reports the outbound mail circuit state.
type MailStatus interface {
	State() string
}

type HealthHandler struct {
	ping    func(ctx context.Context) error
	mail    MailStatus
	metrics *observability.MailMetrics
}

// NewHealthHandler builds the probe handler. mail and metrics may be nil.
func NewHealthHandler(ping func(ctx context.Context) error, mail MailStatus, metrics *observability.MailMetrics) *HealthHandler {
	return &HealthHandler{ping: ping, mail: mail, metrics: metrics}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz fails when the store does not answer. Mail trouble is reported but
// does not make the API unready.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	body := gin.H{"status": "ready"}

	if h.mail != nil {
		body["mail"] = h.mail.State()
	}
	if h.metrics != nil {
		body["mailStats"] = h.metrics.Snapshot()
	}

	if h.ping != nil {
		cctx, cancel := withTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.ping(cctx); err != nil {
			body["status"] = "not_ready"
			body["store"] = "unreachable"
			ctx.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	body["store"] = "ok"
	ctx.JSON(http.StatusOK, body)
}
