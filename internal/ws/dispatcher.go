package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/services"
)

type eventHandler func(ctx context.Context, c *Client, data json.RawMessage) error

// Dispatcher routes inbound frames to the messaging core. Events are fire
// and forget: failures are logged and counted, never written back.
type Dispatcher struct {
	messages      *services.MessageService
	reads         *services.ReadTracker
	typing        *services.TypingNotifier
	conversations *services.ConversationService
	friends       *services.FriendService
	log           *zap.Logger
	table         map[string]eventHandler
}

// NewDispatcher wires the event table.
func NewDispatcher(messages *services.MessageService, reads *services.ReadTracker, typing *services.TypingNotifier,
	conversations *services.ConversationService, friends *services.FriendService, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		messages:      messages,
		reads:         reads,
		typing:        typing,
		conversations: conversations,
		friends:       friends,
		log:           log,
	}
	d.table = map[string]eventHandler{
		EventSendMessage:         d.sendMessage,
		EventMarkAsRead:          d.markAsRead,
		EventTyping:              d.setTyping,
		EventCreateConversation:  d.createConversation,
		EventSendFriendRequest:   d.sendFriendRequest,
		EventAcceptFriendRequest: d.respond(models.FriendRequestAccepted),
		EventRejectFriendRequest: d.respond(models.FriendRequestRejected),
	}
	return d
}

// Dispatch handles one inbound frame. A panic in a handler is recovered so
// the connection survives.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, raw []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		observability.IncWSEvent("any", observability.OutcomeRateLimited)
		c.log.Debug("event dropped by rate limit")
		return
	}

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type == "" {
		observability.IncWSEvent("invalid", observability.OutcomeDropped)
		c.log.Debug("malformed frame dropped")
		return
	}
	handle, ok := d.table[f.Type]
	if !ok {
		observability.IncWSEvent("unknown", observability.OutcomeUnknown)
		c.log.Debug("unknown event dropped", zap.String("event", f.Type))
		return
	}

	ctx, span := otel.Tracer("messenger-service/ws").Start(ctx, "ws.event "+f.Type)
	span.SetAttributes(attribute.String("ws.event", f.Type), attribute.Int64("user.id", c.UserID()))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			observability.IncHandlerPanic()
			observability.IncWSEvent(f.Type, observability.OutcomePanic)
			span.SetStatus(codes.Error, "panic")
			c.log.Error("event handler panicked", zap.String("event", f.Type), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	err := handle(ctx, c, f.Data)
	switch {
	case err == nil:
		observability.IncWSEvent(f.Type, observability.OutcomeHandled)
	case errors.Is(err, errDuplicate):
		observability.IncWSEvent(f.Type, observability.OutcomeDuplicate)
		c.log.Debug("duplicate message dropped", zap.String("event", f.Type))
	default:
		observability.IncWSEvent(f.Type, observability.OutcomeDropped)
		span.RecordError(err)
		if _, classified := services.KindOf(err); classified {
			c.log.Debug("event rejected", zap.String("event", f.Type), zap.Error(err))
		} else {
			span.SetStatus(codes.Error, err.Error())
			c.log.Error("event failed", zap.String("event", f.Type), zap.Error(err))
		}
	}
}

func (d *Dispatcher) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	p, err := decode[sendMessagePayload](data)
	if err != nil {
		return invalid(err)
	}
	if p.ClientID != "" && c.recent.Contains(p.ClientID) {
		return errDuplicate
	}
	_, err = d.messages.Send(ctx, c.UserID(), services.SendInput{
		ConversationID: p.Conversation,
		Content:        p.Content,
		Attachments:    p.Attachments,
		ReplyToID:      p.ReplyTo,
		Source:         "ws",
	})
	if err != nil {
		return err
	}
	if p.ClientID != "" {
		c.recent.Add(p.ClientID)
	}
	return nil
}

func (d *Dispatcher) markAsRead(ctx context.Context, c *Client, data json.RawMessage) error {
	p, err := decode[markAsReadPayload](data)
	if err != nil {
		return invalid(err)
	}
	_, err = d.reads.MarkRead(ctx, c.UserID(), p.MessageID)
	return err
}

func (d *Dispatcher) setTyping(_ context.Context, c *Client, data json.RawMessage) error {
	p, err := decode[typingPayload](data)
	if err != nil {
		return invalid(err)
	}
	return d.typing.SetTyping(c, p.ConversationID, p.IsTyping)
}

func (d *Dispatcher) createConversation(ctx context.Context, c *Client, data json.RawMessage) error {
	p, err := decode[createConversationPayload](data)
	if err != nil {
		return invalid(err)
	}
	_, _, err = d.conversations.Create(ctx, c.UserID(), services.CreateConversationInput{
		UserIDs: p.UserIDs,
		IsGroup: p.IsGroup,
		Name:    p.Name,
	})
	return err
}

func (d *Dispatcher) sendFriendRequest(ctx context.Context, c *Client, data json.RawMessage) error {
	p, err := decode[friendRequestPayload](data)
	if err != nil {
		return invalid(err)
	}
	_, err = d.friends.SendRequest(ctx, c.UserID(), p.UserID, p.Message)
	return err
}

func (d *Dispatcher) respond(decision models.FriendRequestStatus) eventHandler {
	return func(ctx context.Context, c *Client, data json.RawMessage) error {
		p, err := decode[requestDecisionPayload](data)
		if err != nil {
			return invalid(err)
		}
		_, err = d.friends.Respond(ctx, c.UserID(), p.RequestID, decision)
		return err
	}
}

func invalid(err error) error {
	return &services.Error{Kind: services.KindValidation, Msg: fmt.Sprintf("invalid payload: %v", err)}
}
