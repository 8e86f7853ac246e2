package model

import "time"

// Label is a request to print a barcode for an item. Name and code are
// copied from the item at creation time, so later edits to the item never
// rewrite labels already issued.
type Label struct {
	ID             int64      `json:"id"`
	ItemID         int64      `json:"item_id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	SequenceNumber int64      `json:"sequence_number"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	PrintedAt      *time.Time `json:"printed_at,omitempty"`
}

// Label statuses. The only transition is pending -> printed.
const (
	LabelStatusPending = "pending"
	LabelStatusPrinted = "printed"
)
