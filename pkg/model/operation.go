package model

import "time"

// OperationType is a mutating action issued against a live browser.
type OperationType string

const (
	OpClose    OperationType = "close"
	OpActivate OperationType = "activate"
	OpCreate   OperationType = "create"
)

// Undoable reports whether an inverse action exists for the type.
func (t OperationType) Undoable() bool {
	return t == OpClose || t == OpCreate
}

// OperationStatus is the state of a TabOperationRecord.
type OperationStatus string

const (
	StatusPendingVerification OperationStatus = "pending_verification"
	StatusSuccess             OperationStatus = "success"
	StatusFailed              OperationStatus = "failed"
	StatusRolledBack          OperationStatus = "rolled_back"
)

// TabOperationRecord is the audit and undo entry for one remote operation.
type TabOperationRecord struct {
	ID                 string          `json:"id"`
	Type               OperationType   `json:"type"`
	Browser            BrowserType     `json:"browser"`
	TabID              string          `json:"tab_id,omitempty"`
	URL                string          `json:"url,omitempty"`
	Title              string          `json:"title,omitempty"`
	Status             OperationStatus `json:"status"`
	FailureReason      string          `json:"failure_reason,omitempty"`
	ExecutedAt         time.Time       `json:"executed_at"`
	CompletedAt        time.Time       `json:"completed_at,omitempty"`
	Undoable           bool            `json:"undoable"`
	RelatedOperationID string          `json:"related_operation_id,omitempty"`
	IsUndo             bool            `json:"is_undo"`
	Fallback           bool            `json:"fallback"`
	Attempts           int             `json:"attempts"`
}

// Terminal reports whether the record has left PendingVerification.
func (r TabOperationRecord) Terminal() bool {
	return r.Status != StatusPendingVerification
}
