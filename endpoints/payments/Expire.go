package payments

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dev-m-josh/final-project-sub001/kernel"
	"github.com/dev-m-josh/final-project-sub001/models"
)

// Payments whose callback never arrived (customer dismissed or ignored the
// prompt) stay awaiting_callback forever otherwise. The STK prompt itself
// dies within minutes, so an hour is generous.
const staleAfter = time.Hour

// ExpireStalePayments is invoked by an external scheduler (cron hitting this
// route); nothing in this service runs it periodically.
func ExpireStalePayments(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("payment_expire.handler")

	store := models.NewGormPaymentStore(rt.DB)
	expired, err := store.ExpireStale(rt.SpanContext, staleAfter)
	if err != nil {
		rt.Ef(http.StatusInternalServerError, "failed to expire stale payments: %v", err)
		return
	}

	if expired > 0 {
		log.Info().Int64("count", expired).Msg("expired stale payments")
	}

	c.JSON(http.StatusOK, &gin.H{"expired": expired})
	rt.EndBlock()
}
