package model

import "time"

// Item represents a stock-keeping unit: one type of protective equipment
// with a unique business code and a current balance on hand.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Balance   int       `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CodePrefix prefixes system-generated item codes (EPI000001, EPI000002...).
const CodePrefix = "EPI"
