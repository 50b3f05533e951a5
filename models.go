package main

import (
	"time"

	"github.com/shopspring/decimal"
)

type NotificationType string

const (
	NotificationSubscription  NotificationType = "subscription"
	NotificationLentMoney     NotificationType = "lent_money"
	NotificationBorrowedMoney NotificationType = "borrowed_money"
)

// Subscription and Loan rows are owned by the finance application; this
// service only reads them.
type Subscription struct {
	ID           uint            `gorm:"primaryKey"`
	UserID       uint            `gorm:"not null"`
	Name         string          `gorm:"not null"`
	Amount       decimal.Decimal `gorm:"type:real;not null"`
	BillingCycle string          `gorm:"not null"`
	NextPayment  Date            `gorm:"not null"`
}

type Loan struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"not null"`
	Person    string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:real;not null"`
	IsLent    bool            `gorm:"not null"`
	IsSettled bool            `gorm:"default:false"`
	Date      time.Time       `gorm:"autoCreateTime"`
	// ReminderDate only exists on databases migrated after reminders were introduced.
	ReminderDate *Date
}

func (l Loan) notificationType() NotificationType {
	if l.IsLent {
		return NotificationLentMoney
	}
	return NotificationBorrowedMoney
}

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	RelatedID uint             `gorm:"index" json:"related_id"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotifiedChat links a Telegram chat to a finance user so new notifications
// are pushed there.
type NotifiedChat struct {
	ID             uint  `gorm:"primaryKey"`
	UserID         uint  `gorm:"not null;index"`
	TelegramChatID int64 `gorm:"not null;uniqueIndex"`
	UserName       string
	CreatedAt      time.Time
}

func formatAmount(amount decimal.Decimal) string {
	return amount.String()
}
