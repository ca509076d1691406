package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/repositories"
)

var (
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrNotParticipant   = errors.New("company is not a session participant")
	ErrEmptyContent     = errors.New("message content is required")
)

// Broadcaster is the fan-out surface for chat events. Delivery is
// best-effort: a missed event is simply absent until the next fetch, the
// persisted message remains the source of truth.
type Broadcaster interface {
	PublishToSession(sessionID, eventType string, payload any)
	PublishToUser(userID, eventType string, payload any)
}

// Service owns the conversation lifecycle and message delivery semantics.
type Service struct {
	sessions repositories.SessionRepository
	messages repositories.MessageRepository
	hub      Broadcaster
	now      func() time.Time
}

// NewService builds a chat Service.
func NewService(sessions repositories.SessionRepository, messages repositories.MessageRepository, hub Broadcaster) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		hub:      hub,
		now:      time.Now,
	}
}

// StartSession returns the session between the requester and the other
// company, creating or reactivating it as needed. Self-conversations are
// rejected before any lookup.
func (s *Service) StartSession(ctx context.Context, requester, other, title string) (models.ChatSession, error) {
	if requester == other {
		return models.ChatSession{}, ErrSelfConversation
	}
	session, created, err := s.sessions.GetOrCreate(ctx, requester, other, title)
	if err != nil {
		return models.ChatSession{}, err
	}
	if created {
		log.Printf("chat session %s created between %s and %s", session.ID, session.CompanyA, session.CompanyB)
	}
	return session, nil
}

// ListSessions returns the sessions visible to the company.
func (s *Service) ListSessions(ctx context.Context, companyID string) ([]models.SessionSummary, error) {
	sessions, err := s.sessions.ListForParty(ctx, companyID)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.SummaryFor(companyID))
	}
	return summaries, nil
}

// SendMessage validates, persists and broadcasts a message. The recipient's
// unread counter is incremented atomically in storage, their archive flag is
// cleared, and the last-message cache settles on the highest sequence. The
// message event goes to the session channel; a notification event carrying
// the fresh unread count goes to the recipient's user channel.
func (s *Service) SendMessage(ctx context.Context, sessionID, senderID, content string, attachment *models.Attachment) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.Message{}, err
	}
	if !session.HasParticipant(senderID) {
		return models.Message{}, ErrNotParticipant
	}
	recipient := session.OtherParty(senderID)

	seq, err := s.sessions.NextSeq(ctx, sessionID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Create(ctx, models.Message{
		SessionID:  sessionID,
		SenderID:   senderID,
		Content:    content,
		Attachment: attachment,
		Seq:        seq,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return models.Message{}, err
	}

	unread, err := s.sessions.ApplyMessage(ctx, sessionID, recipient, msg)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessageSent()

	s.hub.PublishToSession(sessionID, models.EventMessage, msg)
	s.hub.PublishToUser(recipient, models.EventNotification, models.NotificationPayload{
		SessionID:   sessionID,
		Message:     &msg,
		UnreadCount: unread,
	})
	return msg, nil
}

// GetMessages returns the session's messages in sequence order. As a side
// effect the other party's messages are marked read and the requester's
// unread counter resets to zero; re-fetching with nothing new is a no-op.
func (s *Service) GetMessages(ctx context.Context, sessionID, requester string) ([]models.Message, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(requester) {
		return nil, ErrNotParticipant
	}

	marked, err := s.messages.MarkReadBySender(ctx, sessionID, session.OtherParty(requester))
	if err != nil {
		return nil, err
	}
	if err := s.sessions.ResetUnread(ctx, sessionID, requester); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if marked > 0 {
		s.hub.PublishToSession(sessionID, models.EventMessagesRead, models.ReadPayload{
			SessionID: sessionID,
			ReaderID:  requester,
		})
	}
	return msgs, nil
}

// SetArchived toggles the requester's archive flag. Archiving only affects
// presentation; the session stays live for real-time delivery.
func (s *Service) SetArchived(ctx context.Context, sessionID, companyID string, archived bool) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.HasParticipant(companyID) {
		return ErrNotParticipant
	}
	if err := s.sessions.SetArchived(ctx, sessionID, companyID, archived); err != nil {
		return err
	}
	s.hub.PublishToUser(companyID, models.EventArchived, models.SessionStatePayload{
		SessionID: sessionID,
		CompanyID: companyID,
		Archived:  archived,
	})
	return nil
}

// SoftDelete hides the session for one party. The other party keeps a fully
// functional session. Once both parties have deleted, the session is
// terminal and its messages are purged.
func (s *Service) SoftDelete(ctx context.Context, sessionID, companyID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.HasParticipant(companyID) {
		return ErrNotParticipant
	}

	updated, err := s.sessions.SoftDelete(ctx, sessionID, companyID)
	if err != nil {
		return err
	}

	if updated.DeletedFor(updated.CompanyA) && updated.DeletedFor(updated.CompanyB) {
		purged, err := s.messages.PurgeBySession(ctx, sessionID)
		if err != nil {
			log.Printf("message purge failed for session %s: %v", sessionID, err)
		} else if purged > 0 {
			log.Printf("purged %d messages from terminal session %s", purged, sessionID)
		}
	}

	s.hub.PublishToUser(companyID, models.EventDeleted, models.SessionStatePayload{
		SessionID: sessionID,
		CompanyID: companyID,
	})
	return nil
}

// IsParticipant reports whether the company belongs to the session.
func (s *Service) IsParticipant(ctx context.Context, sessionID, companyID string) (bool, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.HasParticipant(companyID), nil
}
