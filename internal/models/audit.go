package models

import "time"

// Audit actions recorded by the desk.
const (
	AuditActionLogin        = "LOGIN"
	AuditActionQuoteApprove = "QUOTE_APPROVE"
	AuditActionQuoteReject  = "QUOTE_REJECT"
	AuditActionQuoteTrash   = "QUOTE_TRASH"
	AuditActionQuoteRestore = "QUOTE_RESTORE"
	AuditActionQuotePurge   = "QUOTE_PURGE"
	AuditActionQuoteRename  = "QUOTE_RENAME"
)

// AuditActionFor maps a lifecycle action to its audit action.
func AuditActionFor(action QuoteAction) string {
	switch action {
	case QuoteActionApprove:
		return AuditActionQuoteApprove
	case QuoteActionReject:
		return AuditActionQuoteReject
	case QuoteActionTrash:
		return AuditActionQuoteTrash
	case QuoteActionRestore:
		return AuditActionQuoteRestore
	case QuoteActionPurge:
		return AuditActionQuotePurge
	}
	return "QUOTE_" + string(action)
}

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
