package dto

import "github.com/customeros/mailsync/internal/enum"

// EmailReceived is published for every newly mirrored message.
type EmailReceived struct {
	AccountID string          `json:"accountId"`
	EmailID   string          `json:"emailId"`
	Folder    enum.FolderType `json:"folder"`
	ImapUID   uint32          `json:"imapUid"`
	MessageID string          `json:"messageId"`
}

// SyncStatusChanged is published on every state-machine transition.
type SyncStatusChanged struct {
	AccountID string          `json:"accountId"`
	Status    enum.SyncStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
}
