package payments

import (
	"github.com/gin-gonic/gin"
)

func RegisterController(rg *gin.RouterGroup) {
	g := rg.Group("/payments")

	g.POST("/initiate", InitiatePayment)
	g.POST("/callback", PaymentCallback)
	g.GET("/status/:id", PaymentStatus)
	g.POST("/expire", ExpireStalePayments)
}
