package model

import "time"

// Movement is an immutable record of one hand-out of an item to a recipient.
// Replenishments are not recorded; only outflow history is kept.
type Movement struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	Recipient string    `json:"recipient"`
	MovedAt   time.Time `json:"moved_at"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
	ItemCode string `json:"item_code,omitempty"`
}
