package domain

import "time"

// Notification is an in-app message recorded after a trade completes.
// Delivery is best-effort: a failure here never affects the trade.
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"` // UUID
	MemberID  int64     `gorm:"index" json:"member_id"`
	Category  string    `gorm:"size:16" json:"category"` // "TRADE"
	Message   string    `gorm:"size:255" json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

const NotificationCategoryTrade = "TRADE"
