package models

import "time"

// ChatSession represents a two-party conversation between companies.
// The party pair is stored in canonical order (CompanyA < CompanyB) so the
// uniqueness constraint holds regardless of who initiated the session.
type ChatSession struct {
	ID       string `bson:"_id,omitempty" json:"id"`
	CompanyA string `bson:"company_a" json:"company_a"`
	CompanyB string `bson:"company_b" json:"company_b"`
	Title    string `bson:"title,omitempty" json:"title,omitempty"`

	LastMessageText   string    `bson:"last_message_text,omitempty" json:"last_message_text,omitempty"`
	LastMessageSender string    `bson:"last_message_sender,omitempty" json:"last_message_sender,omitempty"`
	LastMessageAt     time.Time `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	LastMessageSeq    int64     `bson:"last_message_seq" json:"-"`

	// MessageSeq is the session-scoped sequence counter messages draw from.
	MessageSeq int64 `bson:"message_seq" json:"-"`

	Unread   map[string]int64 `bson:"unread,omitempty" json:"unread,omitempty"`
	Archived map[string]bool  `bson:"archived,omitempty" json:"archived,omitempty"`
	Deleted  map[string]bool  `bson:"deleted,omitempty" json:"deleted,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CanonicalPair orders two party ids so the same two companies always map to
// the same stored pair.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether the company is one of the session's parties.
func (s ChatSession) HasParticipant(companyID string) bool {
	return s.CompanyA == companyID || s.CompanyB == companyID
}

// OtherParty returns the counterpart of the given company in the session.
func (s ChatSession) OtherParty(companyID string) string {
	if s.CompanyA == companyID {
		return s.CompanyB
	}
	return s.CompanyA
}

// UnreadFor returns the unread counter for a party, zero when absent.
func (s ChatSession) UnreadFor(companyID string) int64 {
	return s.Unread[companyID]
}

// DeletedFor reports the party's soft-delete flag.
func (s ChatSession) DeletedFor(companyID string) bool {
	return s.Deleted[companyID]
}

// ArchivedFor reports the party's archive flag.
func (s ChatSession) ArchivedFor(companyID string) bool {
	return s.Archived[companyID]
}

// SessionSummary is the API view of a session for one party.
type SessionSummary struct {
	SessionID         string    `json:"session_id"`
	OtherCompanyID    string    `json:"other_company_id"`
	Title             string    `json:"title,omitempty"`
	LastMessageText   string    `json:"last_message_text,omitempty"`
	LastMessageSender string    `json:"last_message_sender,omitempty"`
	LastMessageAt     time.Time `json:"last_message_at,omitempty"`
	UnreadCount       int64     `json:"unread_count"`
	Archived          bool      `json:"archived"`
	CreatedAt         time.Time `json:"created_at"`
}

// SummaryFor projects the session into a per-party summary.
func (s ChatSession) SummaryFor(companyID string) SessionSummary {
	return SessionSummary{
		SessionID:         s.ID,
		OtherCompanyID:    s.OtherParty(companyID),
		Title:             s.Title,
		LastMessageText:   s.LastMessageText,
		LastMessageSender: s.LastMessageSender,
		LastMessageAt:     s.LastMessageAt,
		UnreadCount:       s.UnreadFor(companyID),
		Archived:          s.ArchivedFor(companyID),
		CreatedAt:         s.CreatedAt,
	}
}
