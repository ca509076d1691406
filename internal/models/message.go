package models

import "time"

// Attachment carries file metadata for a message. Upload handling lives
// elsewhere; only the descriptor is stored here.
type Attachment struct {
	FileName string `bson:"file_name" json:"file_name"`
	FileType string `bson:"file_type" json:"file_type"`
	FileSize int64  `bson:"file_size" json:"file_size"`
	FilePath string `bson:"file_path" json:"file_path"`
}

// Message represents a single chat message within a session.
// Seq is allocated from the session's counter and defines the total order of
// messages; CreatedAt is informational and may tie.
type Message struct {
	ID         string      `bson:"_id,omitempty" json:"id"`
	SessionID  string      `bson:"session_id" json:"session_id"`
	SenderID   string      `bson:"sender_id" json:"sender_id"`
	Content    string      `bson:"content" json:"content"`
	Attachment *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	IsRead     bool        `bson:"is_read" json:"is_read"`
	Seq        int64       `bson:"seq" json:"seq"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}
