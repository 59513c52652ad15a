package entity

import "time"

type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "pending"
	ReceiptStatusCompleted ReceiptStatus = "completed"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

// Receipt is one generation attempt. Rows are never deleted; a retry
// produces a new row with a new number.
type Receipt struct {
	ID            int64         `json:"id" db:"id"`
	ReceiptNumber string        `json:"receipt_number" db:"receipt_number"`
	PaymentID     int64         `json:"payment_id" db:"payment_id"`
	Status        ReceiptStatus `json:"status" db:"status"`
	FileName      string        `json:"file_name" db:"file_name"`
	BucketName    string        `json:"bucket_name,omitempty" db:"bucket_name"`
	ObjectName    string        `json:"object_name,omitempty" db:"object_name"`
	VersionID     string        `json:"version_id,omitempty" db:"version_id"`
	ETag          string        `json:"etag,omitempty" db:"etag"`
	FailureReason string        `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// StoredObject is where the object store put a receipt.
type StoredObject struct {
	Bucket    string
	Key       string
	VersionID string
	ETag      string
}
