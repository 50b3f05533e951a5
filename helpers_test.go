package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDeliverer struct {
	delivered []Notification
}

func (d *recordingDeliverer) Deliver(_ context.Context, n Notification) {
	d.delivered = append(d.delivered, n)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	db, err := gorm.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// financeSchema is the DDL the finance application runs on startup,
// including the reminder_date column it adds to loans.
var financeSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		profile_photo TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		amount REAL NOT NULL,
		billing_cycle TEXT NOT NULL,
		next_payment DATE NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	)`,
	`CREATE TABLE loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		person TEXT NOT NULL,
		amount REAL NOT NULL,
		is_lent BOOLEAN NOT NULL,
		is_settled BOOLEAN DEFAULT 0,
		date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		reminder_date DATE,
		FOREIGN KEY (user_id) REFERENCES users (id)
	)`,
	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		related_id INTEGER,
		is_read BOOLEAN DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (id)
	)`,
	`INSERT INTO users (id, username, email, password) VALUES (1, 'alex', 'alex@example.com', 'x')`,
}

// newFinanceDB returns a database created by the finance application itself,
// before this service has touched it.
func newFinanceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	for _, stmt := range financeSchema {
		execSQL(t, db, stmt)
	}
	return db
}

// newFinanceStore migrates a finance database the way startup does.
func newFinanceStore(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	db := newFinanceDB(t)
	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	caps, err := detectCapabilities(db, false)
	if err != nil {
		t.Fatalf("detect capabilities: %v", err)
	}
	return db, NewStore(db, time.UTC, caps)
}

func execSQL(t *testing.T, db *gorm.DB, query string, args ...any) {
	t.Helper()
	if err := db.Exec(query, args...).Error; err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// newTestStore returns a store over a database whose loans table carries the
// reminder_date column.
func newTestStore(t *testing.T) (*gorm.DB, *Store) {
	t.Helper()
	db := newTestDB(t)
	caps, err := detectCapabilities(db, true)
	if err != nil {
		t.Fatalf("detect capabilities: %v", err)
	}
	return db, NewStore(db, time.UTC, caps)
}

func seedSubscription(t *testing.T, db *gorm.DB, userID uint, name, amount string, next Date) Subscription {
	t.Helper()
	sub := Subscription{
		UserID:       userID,
		Name:         name,
		Amount:       decimal.RequireFromString(amount),
		BillingCycle: "monthly",
		NextPayment:  next,
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func seedLoan(t *testing.T, db *gorm.DB, loan Loan) Loan {
	t.Helper()
	if err := db.Create(&loan).Error; err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return loan
}

func countNotifications(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var count int64
	tx := db.Model(&Notification{})
	if query != "" {
		tx = tx.Where(query, args...)
	}
	if err := tx.Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return count
}

func allNotifications(t *testing.T, db *gorm.DB) []Notification {
	t.Helper()
	var list []Notification
	if err := db.Order("id").Find(&list).Error; err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return list
}
