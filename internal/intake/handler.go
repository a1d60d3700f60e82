// Package intake is the HTTP ingestion adapter. It normalizes web-form submissions and channel
// webhooks into InboundMessage events and publishes them to the incoming topic.
package intake

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"omnichannel-support/internal/bus"
	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/event"
	ticketrepo "omnichannel-support/internal/ticket/repository"
)

const (
	minNameLength    = 2
	minMessageLength = 10
)

// Handler serves the intake routes.
type Handler struct {
	pub     bus.Publisher
	topic   string
	tickets ticketrepo.Repository
	now     func() time.Time
}

// NewHandler returns a handler publishing to topic. tickets may be nil, which disables the
// ticket action routes.
func NewHandler(pub bus.Publisher, topic string, tickets ticketrepo.Repository) *Handler {
	return &Handler{pub: pub, topic: topic, tickets: tickets, now: time.Now}
}

type formSubmission struct {
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Subject     string   `json:"subject" binding:"required"`
	Category    string   `json:"category" binding:"required,oneof=general technical billing feedback bug_report"`
	Message     string   `json:"message" binding:"required"`
	Priority    string   `json:"priority"`
	Attachments []string `json:"attachments"`
}

type emailSubmission struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Email     string `json:"email" binding:"required"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Message   string `json:"message" binding:"required"`
}

type chatSubmission struct {
	MessageID string `json:"message_id"`
	Phone     string `json:"phone" binding:"required"`
	Name      string `json:"name"`
	Message   string `json:"message" binding:"required"`
}

type acceptedResponse struct {
	ChannelMessageID string `json:"channel_message_id"`
	Message          string `json:"message"`
}

// SubmitForm accepts a web support form.
func (h *Handler) SubmitForm(c *gin.Context) {
	var req formSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < minNameLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("name must be at least %d characters", minNameLength)})
		return
	}
	message := strings.TrimSpace(req.Message)
	if len([]rune(message)) < minMessageLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("message must be at least %d characters", minMessageLength)})
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	m := &event.InboundMessage{
		Channel:          event.ChannelWebForm,
		ChannelMessageID: uuid.New().String(),
		CustomerEmail:    req.Email,
		CustomerName:     name,
		Subject:          strings.TrimSpace(req.Subject),
		Content:          message,
		Metadata: map[string]any{
			"category":     req.Category,
			"priority":     priority,
			"form_version": "1.0",
			"attachments":  req.Attachments,
		},
	}
	h.publish(c, m, "Thank you for contacting us! Our assistant will respond shortly.")
}

// EmailWebhook accepts an email already extracted by the mail provider integration.
func (h *Handler) EmailWebhook(c *gin.Context) {
	var req emailSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := &event.InboundMessage{
		Channel:          event.ChannelEmail,
		ChannelMessageID: messageID(req.MessageID, "email"),
		CustomerEmail:    req.Email,
		CustomerName:     strings.TrimSpace(req.Name),
		Subject:          strings.TrimSpace(req.Subject),
		Content:          strings.TrimSpace(req.Message),
	}
	if req.ThreadID != "" {
		m.Metadata = map[string]any{"thread_id": req.ThreadID}
	}
	h.publish(c, m, "Email accepted; the reply will be sent to the sender.")
}

// ChatWebhook accepts a chat message from the messaging provider.
func (h *Handler) ChatWebhook(c *gin.Context) {
	var req chatSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := &event.InboundMessage{
		Channel:          event.ChannelChat,
		ChannelMessageID: messageID(req.MessageID, "chat"),
		CustomerPhone:    req.Phone,
		CustomerName:     strings.TrimSpace(req.Name),
		Content:          strings.TrimSpace(req.Message),
	}
	h.publish(c, m, "Chat message accepted; the reply will be sent to the same number.")
}

// EscalateTicket hands a ticket to human support.
func (h *Handler) EscalateTicket(c *gin.Context) {
	h.ticketAction(c, "escalated", h.tickets.Escalate)
}

// ResolveTicket closes a ticket and its conversation.
func (h *Handler) ResolveTicket(c *gin.Context) {
	h.ticketAction(c, "resolved", h.tickets.Resolve)
}

func (h *Handler) ticketAction(c *gin.Context, status string, action func(ctx context.Context, id string, at time.Time) error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ctx := c.Request.Context()
	t, err := h.tickets.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ticket"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	if err := action(ctx, id, h.now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ticket"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// publish stamps received_at, publishes m and writes the response.
func (h *Handler) publish(c *gin.Context, m *event.InboundMessage, note string) {
	m.ReceivedAt = event.FormatTimestamp(h.now())
	err := h.pub.Publish(c.Request.Context(), h.topic, m)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, acceptedResponse{ChannelMessageID: m.ChannelMessageID, Message: note})
	case errs.Is(err, errs.KindValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message bus unavailable"})
	}
}

func messageID(given, prefix string) string {
	if id := strings.TrimSpace(given); id != "" {
		return id
	}
	return fmt.Sprintf("sim_%s_%s", prefix, uuid.New().String()[:8])
}
