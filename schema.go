package main

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SchemaCapabilities describes optional columns present in the finance
// database. It is filled once at startup and handed to the checkers.
type SchemaCapabilities struct {
	LoanReminderDate bool
}

// legacyLoan mirrors the loans table as it was created before reminder dates
// existed, so a missing table can be created without the optional column.
type legacyLoan struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"not null"`
	Person    string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:real;not null"`
	IsLent    bool            `gorm:"not null"`
	IsSettled bool            `gorm:"default:false"`
	Date      time.Time       `gorm:"autoCreateTime"`
}

func (legacyLoan) TableName() string {
	return "loans"
}

// migrate only alters notified_chats. The finance tables are created when
// absent and otherwise left exactly as the finance application defined them.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&NotifiedChat{}); err != nil {
		return fmt.Errorf("migrating notified chats: %w", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Notification{}) {
		if err := m.CreateTable(&Notification{}); err != nil {
			return fmt.Errorf("creating notifications table: %w", err)
		}
	}
	if !m.HasTable(&Subscription{}) {
		if err := m.CreateTable(&Subscription{}); err != nil {
			return fmt.Errorf("creating subscriptions table: %w", err)
		}
	}
	if !m.HasTable(&Loan{}) {
		if err := m.CreateTable(&legacyLoan{}); err != nil {
			return fmt.Errorf("creating loans table: %w", err)
		}
	}
	return nil
}

// detectCapabilities inspects the loans table and, when addMissing is set,
// adds the reminder_date column before reporting it as available.
func detectCapabilities(db *gorm.DB, addMissing bool) (SchemaCapabilities, error) {
	caps := SchemaCapabilities{}
	m := db.Migrator()
	if !m.HasTable(&Loan{}) {
		return caps, fmt.Errorf("loans table does not exist")
	}
	caps.LoanReminderDate = m.HasColumn(&Loan{}, "ReminderDate")
	if caps.LoanReminderDate || !addMissing {
		return caps, nil
	}
	log.Printf("adding reminder_date column to loans table")
	if err := m.AddColumn(&Loan{}, "ReminderDate"); err != nil {
		return caps, fmt.Errorf("adding reminder_date column: %w", err)
	}
	caps.LoanReminderDate = true
	log.Printf("reminder_date column added")
	return caps, nil
}
