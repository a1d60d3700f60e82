package intake

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter registers the intake routes on a new gin engine.
func NewRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", health)
	r.POST("/support/submit", h.SubmitForm)

	webhooks := r.Group("/api/webhooks")
	{
		webhooks.POST("/email", h.EmailWebhook)
		webhooks.POST("/chat", h.ChatWebhook)
	}
	if h.tickets != nil {
		tickets := r.Group("/api/tickets")
		{
			tickets.POST("/:id/escalate", h.EscalateTicket)
			tickets.POST("/:id/resolve", h.ResolveTicket)
		}
	}
	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "intake",
		"time":    time.Now().Unix(),
	})
}
