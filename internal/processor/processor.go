// Package processor is the message processor: it turns one inbound event into a ticket, a stored
// conversation turn, a delivered reply and a metric event, or into one dead-letter event.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"omnichannel-support/internal/bus"
	convrepo "omnichannel-support/internal/conversation/repository"
	"omnichannel-support/internal/delivery"
	"omnichannel-support/internal/errs"
	"omnichannel-support/internal/escalation"
	"omnichannel-support/internal/event"
	"omnichannel-support/internal/knowledge"
	msgdomain "omnichannel-support/internal/message/domain"
	msgrepo "omnichannel-support/internal/message/repository"
	"omnichannel-support/internal/resolver"
	"omnichannel-support/internal/response"
	otelsetup "omnichannel-support/internal/telemetry/otel"
	ticketdomain "omnichannel-support/internal/ticket/domain"
	ticketrepo "omnichannel-support/internal/ticket/repository"
)

// DeliverySkipped is the delivery status of a redelivered event whose reply was already handled.
const DeliverySkipped = "skipped"

// Resolver maps a contact to a customer and conversation.
type Resolver interface {
	Resolve(ctx context.Context, contact resolver.Contact, displayName, channel string) (resolver.Resolution, error)
}

// Responder produces the reply for a message. It never fails.
type Responder interface {
	Respond(ctx context.Context, message string, channel event.Channel, kb knowledge.Result) response.Result
}

// Deps are the processor's collaborators. Knowledge, Notifier and Instruments are optional.
type Deps struct {
	Resolver      Resolver
	Tickets       ticketrepo.Repository
	Messages      msgrepo.Repository
	Conversations convrepo.Repository
	Knowledge     knowledge.Searcher
	Engine        Responder
	Dispatcher    delivery.Dispatcher
	Notifier      escalation.Notifier
	Publisher     bus.Publisher
	Topics        bus.Topics
	Instruments   *otelsetup.Instruments
}

// Processor handles inbound events one at a time.
type Processor struct {
	Deps
	tracer trace.Tracer
	now    func() time.Time
}

// New returns a processor. It fails when a required dependency is missing.
func New(d Deps) (*Processor, error) {
	switch {
	case d.Resolver == nil, d.Tickets == nil, d.Messages == nil, d.Conversations == nil:
		return nil, errors.New("processor: resolver and repositories are required")
	case d.Engine == nil, d.Dispatcher == nil, d.Publisher == nil:
		return nil, errors.New("processor: engine, dispatcher and publisher are required")
	case d.Topics.Metrics == "" || d.Topics.DeadLetter == "":
		return nil, errors.New("processor: metrics and dead-letter topics are required")
	}
	if d.Notifier == nil {
		d.Notifier = escalation.NopNotifier{}
	}
	return &Processor{Deps: d, tracer: otel.Tracer("omnichannel-support/processor"), now: time.Now}, nil
}

// Outcome describes one processed event.
type Outcome struct {
	TicketID         string
	ConversationID   string
	Duplicate        bool
	Reply            response.Result
	Delivery         delivery.Result
	EscalationFailed bool
	Metric           *event.MetricEvent
}

// Handle is the bus handler for the incoming topic. Events that cannot be processed are
// dead-lettered; Handle returns an error only when the dead-letter publish itself fails, so the
// offset is not committed and the event is redelivered.
func (p *Processor) Handle(ctx context.Context, msg bus.Message) error {
	start := p.now()
	m, err := event.DecodeInbound(msg.Value)
	if err != nil {
		log.Printf("processor: rejecting malformed event at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		return p.deadLetter(ctx, m, msg.Value, err, start)
	}
	if _, err := p.process(ctx, m, start); err != nil {
		log.Printf("processor: event %s/%s failed: %v", m.Channel, m.ChannelMessageID, err)
		return p.deadLetter(ctx, m, nil, err, start)
	}
	return nil
}

// Process runs the pipeline for one validated inbound message. A returned error means the event
// must be dead-lettered.
func (p *Processor) Process(ctx context.Context, m *event.InboundMessage) (*Outcome, error) {
	return p.process(ctx, m, p.now())
}

func (p *Processor) process(ctx context.Context, m *event.InboundMessage, start time.Time) (out *Outcome, err error) {
	ctx, span := p.tracer.Start(ctx, "processor.process", trace.WithAttributes(
		attribute.String("support.channel", string(m.Channel)),
		attribute.String("support.channel_message_id", m.ChannelMessageID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := m.Validate(); err != nil {
		return nil, errs.Validation("processor.validate", err)
	}
	key := m.IdempotencyKey()
	now := p.now().UTC()

	// A stored inbound message means this is a redelivery: stay on its conversation instead of
	// resolving again, which could open a new one once the first was escalated.
	prior, err := p.Messages.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, errs.Persistence("processor.lookup_inbound", err)
	}
	var res resolver.Resolution
	if prior != nil {
		conv, err := p.Conversations.GetByID(ctx, prior.ConversationID)
		if err != nil {
			return nil, errs.Persistence("processor.lookup_conversation", err)
		}
		if conv == nil {
			return nil, errs.Persistence("processor.lookup_conversation",
				fmt.Errorf("conversation %s of stored message not found", prior.ConversationID))
		}
		res = resolver.Resolution{CustomerID: conv.CustomerID, ConversationID: conv.ID}
	} else {
		res, err = p.Resolver.Resolve(ctx, resolver.Contact{Email: m.Email(), Phone: m.Phone()}, m.CustomerName, string(m.Channel))
		if err != nil {
			return nil, err
		}
	}

	ticket, created, err := p.Tickets.CreateIdempotent(ctx, &ticketdomain.Ticket{
		ID:             uuid.New().String(),
		CustomerID:     res.CustomerID,
		ConversationID: res.ConversationID,
		SourceChannel:  string(m.Channel),
		Category:       ticketdomain.DefaultCategory,
		Priority:       ticketdomain.PriorityMedium,
		Status:         ticketdomain.StatusOpen,
		IdempotencyKey: key,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, errs.Persistence("processor.create_ticket", err)
	}
	out = &Outcome{TicketID: ticket.ID, ConversationID: ticket.ConversationID}
	span.SetAttributes(attribute.String("support.ticket_id", ticket.ID), attribute.String("support.conversation_id", out.ConversationID))

	if !created {
		reply, err := p.Messages.GetByIdempotencyKey(ctx, msgdomain.ReplyKey(key))
		if err != nil {
			return nil, errs.Persistence("processor.lookup_reply", err)
		}
		if reply != nil {
			return p.finishDuplicate(ctx, m, out, start)
		}
	}

	if _, err := p.Messages.Append(ctx, &msgdomain.Message{
		ID:               uuid.New().String(),
		ConversationID:   out.ConversationID,
		Channel:          string(m.Channel),
		Direction:        msgdomain.DirectionInbound,
		Role:             msgdomain.RoleCustomer,
		Content:          m.Content,
		ChannelMessageID: m.ChannelMessageID,
		IdempotencyKey:   key,
		CreatedAt:        now,
	}); err != nil {
		return nil, errs.Persistence("processor.store_inbound", err)
	}

	kb := knowledge.Empty
	if p.Knowledge != nil {
		kb = p.Knowledge.Search(ctx, m.Content)
		if kb.Status == knowledge.StatusUnavailable {
			log.Printf("processor: knowledge base unavailable, answering without context: %v", kb.Err)
		}
	}

	out.Reply = p.Engine.Respond(ctx, m.Content, m.Channel, kb)
	if out.Reply.GenErr != nil && p.Instruments != nil {
		p.Instruments.FellBack(ctx, string(m.Channel))
	}
	span.SetAttributes(attribute.String("support.reply_source", string(out.Reply.Source)))

	if out.Reply.Escalate {
		p.escalate(ctx, m, out, now)
	}

	formatted := delivery.Format(m.Channel, out.Reply.Text)
	stored, err := p.Messages.Append(ctx, &msgdomain.Message{
		ID:             uuid.New().String(),
		ConversationID: out.ConversationID,
		Channel:        string(m.Channel),
		Direction:      msgdomain.DirectionOutbound,
		Role:           msgdomain.RoleAgent,
		Content:        out.Reply.Text,
		IdempotencyKey: msgdomain.ReplyKey(key),
		CreatedAt:      p.now().UTC(),
	})
	if err != nil {
		return nil, errs.Persistence("processor.store_outbound", err)
	}
	if !stored {
		// Another worker stored the reply between the lookup and this insert.
		return p.finishDuplicate(ctx, m, out, start)
	}

	out.Delivery = p.Dispatcher.Send(ctx, m.Channel, delivery.Recipient(m.Channel, m.Email(), m.Phone()), formatted)
	if out.Delivery.Status == delivery.StatusFailed {
		log.Printf("processor: delivery of ticket %s failed: %v", out.TicketID, errs.Delivery("processor.dispatch", out.Delivery.Err))
		if p.Instruments != nil {
			p.Instruments.DeliveryFailed(ctx, string(m.Channel))
		}
	}

	if err := p.Conversations.UpdateSentiment(ctx, out.ConversationID, out.Reply.Sentiment, p.now().UTC()); err != nil {
		log.Printf("processor: update sentiment of conversation %s: %v", out.ConversationID, err)
	}

	out.Metric = &event.MetricEvent{
		ConversationID:   out.ConversationID,
		TicketID:         out.TicketID,
		Channel:          m.Channel,
		SentimentScore:   out.Reply.Sentiment,
		IsEscalated:      out.Reply.Escalate,
		EscalationFailed: out.EscalationFailed,
		Status:           event.StatusProcessed,
		DeliveryStatus:   string(out.Delivery.Status),
	}
	if err := p.publishMetric(ctx, out.Metric, start); err != nil {
		return nil, err
	}
	return out, nil
}

// escalate records the escalation decision. Failures are logged and flagged, never returned.
func (p *Processor) escalate(ctx context.Context, m *event.InboundMessage, out *Outcome, now time.Time) {
	if err := p.Tickets.Escalate(ctx, out.TicketID, now); err != nil {
		out.EscalationFailed = true
		log.Printf("processor: escalation of ticket %s failed: %v", out.TicketID, err)
		if p.Instruments != nil {
			p.Instruments.EscalationFailed(ctx, string(m.Channel))
		}
		return
	}
	if p.Instruments != nil {
		p.Instruments.Escalated(ctx, string(m.Channel))
	}
	notice := escalation.Notice{
		TicketID:       out.TicketID,
		ConversationID: out.ConversationID,
		Channel:        string(m.Channel),
		Reasons:        out.Reply.Reasons,
	}
	if err := p.Notifier.Notify(ctx, notice); err != nil {
		log.Printf("processor: escalation notice for ticket %s: %v", out.TicketID, err)
	}
}

// finishDuplicate publishes the metric for a redelivered event without replying again.
func (p *Processor) finishDuplicate(ctx context.Context, m *event.InboundMessage, out *Outcome, start time.Time) (*Outcome, error) {
	out.Duplicate = true
	out.Delivery = delivery.Result{}
	sentiment := response.NeutralSentiment
	escalated := false
	conv, err := p.Conversations.GetByID(ctx, out.ConversationID)
	if err != nil {
		log.Printf("processor: load conversation %s for duplicate: %v", out.ConversationID, err)
	} else if conv != nil {
		if conv.SentimentScore != nil {
			sentiment = *conv.SentimentScore
		}
		escalated = conv.EscalatedTo != ""
	}
	log.Printf("processor: event %s/%s already handled as ticket %s", m.Channel, m.ChannelMessageID, out.TicketID)
	out.Metric = &event.MetricEvent{
		ConversationID: out.ConversationID,
		TicketID:       out.TicketID,
		Channel:        m.Channel,
		SentimentScore: sentiment,
		IsEscalated:    escalated,
		Status:         event.StatusDuplicate,
		DeliveryStatus: DeliverySkipped,
	}
	if err := p.publishMetric(ctx, out.Metric, start); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Processor) publishMetric(ctx context.Context, me *event.MetricEvent, start time.Time) error {
	me.LatencyMs = p.since(start)
	if err := p.Publisher.Publish(ctx, p.Topics.Metrics, me); err != nil {
		return fmt.Errorf("publish metric: %w", err)
	}
	if p.Instruments != nil {
		p.Instruments.Processed(ctx, string(me.Channel), me.Status, me.LatencyMs)
	}
	return nil
}

// deadLetter publishes the failed event. original may be nil when the payload did not parse.
func (p *Processor) deadLetter(ctx context.Context, original *event.InboundMessage, raw []byte, cause error, start time.Time) error {
	dl := &event.DeadLetterEvent{
		Error:     cause.Error(),
		ErrorKind: string(errs.KindOf(cause)),
		LatencyMs: p.since(start),
	}
	if original != nil {
		dl.OriginalMessage = *original
	}
	if raw != nil {
		dl.RawPayload = string(raw)
	}
	if p.Instruments != nil {
		p.Instruments.Failed(ctx, string(dl.OriginalMessage.Channel), dl.ErrorKind, dl.LatencyMs)
	}
	if err := p.Publisher.Publish(ctx, p.Topics.DeadLetter, dl); err != nil {
		return fmt.Errorf("processor: dead-letter publish failed: %w", err)
	}
	return nil
}

func (p *Processor) since(start time.Time) int64 {
	ms := p.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
