package model

import "time"

// AuditAction names what happened at a POS terminal.
type AuditAction string

const (
	AuditScanResolved   AuditAction = "scan_resolved"
	AuditScanUnresolved AuditAction = "scan_unresolved"
	AuditScanFailed     AuditAction = "scan_failed"
	AuditCartRejected   AuditAction = "cart_rejected"
	AuditOrderCreated   AuditAction = "order_created"
	AuditOrderFailed    AuditAction = "order_failed"
	AuditPaymentSettled AuditAction = "payment_settled"
	AuditPaymentFailed  AuditAction = "payment_failed"
)

// AuditEntry is one row of the POS audit trail.
type AuditEntry struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Action    AuditAction `json:"action"`
	Code      string      `json:"code,omitempty"`
	ProductID int64       `json:"product_id,omitempty"`
	OrderID   int64       `json:"order_id,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuditFilter narrows an audit listing. Zero fields match everything.
type AuditFilter struct {
	SessionID string
	Action    AuditAction
	Since     time.Time
	Limit     int
}

// AuditStats summarizes the audit trail.
type AuditStats struct {
	Total    int64                 `json:"total"`
	ByAction map[AuditAction]int64 `json:"by_action"`
	Sessions int64                 `json:"sessions"`
	Oldest   *time.Time            `json:"oldest,omitempty"`
	Newest   *time.Time            `json:"newest,omitempty"`
}
