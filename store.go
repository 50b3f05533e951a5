package main

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

const sqliteDateTimeLayout = "2006-01-02 15:04:05"

// NotificationQuery is the dedup predicate used by the checkers. Zero values
// leave a field unconstrained.
type NotificationQuery struct {
	UserID     uint
	RelatedID  uint
	Type       NotificationType
	CreatedOn  *Date
	UnreadOnly bool
}

type NotificationStore interface {
	FindNotification(ctx context.Context, q NotificationQuery) (*Notification, error)
	InsertNotification(ctx context.Context, n *Notification) (uint, error)
}

type SubscriptionStore interface {
	ListSubscriptionsDueBetween(ctx context.Context, start, end Date) ([]Subscription, error)
}

type LoanStore interface {
	ListUnsettledLoansWithReminderOn(ctx context.Context, day Date) ([]Loan, error)
	ListUnsettledLoansWithoutReminder(ctx context.Context) ([]Loan, error)
}

type Store struct {
	db   *gorm.DB
	loc  *time.Location
	caps SchemaCapabilities
}

func NewStore(db *gorm.DB, loc *time.Location, caps SchemaCapabilities) *Store {
	return &Store{db: db, loc: loc, caps: caps}
}

func (s *Store) FindNotification(ctx context.Context, q NotificationQuery) (*Notification, error) {
	tx := s.db.WithContext(ctx).Model(&Notification{})
	if q.UserID != 0 {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.RelatedID != 0 {
		tx = tx.Where("related_id = ?", q.RelatedID)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.CreatedOn != nil {
		// datetime() folds offsets, a T separator and CURRENT_TIMESTAMP text
		// into the same UTC form before comparing
		start := q.CreatedOn.In(s.loc).UTC().Format(sqliteDateTimeLayout)
		end := q.CreatedOn.AddDays(1).In(s.loc).UTC().Format(sqliteDateTimeLayout)
		tx = tx.Where("datetime(created_at) >= ? AND datetime(created_at) < ?", start, end)
	}
	if q.UnreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	var n Notification
	if err := tx.Order("id").Limit(1).Find(&n).Error; err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) InsertNotification(ctx context.Context, n *Notification) (uint, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return 0, err
	}
	return n.ID, nil
}

func (s *Store) ListSubscriptionsDueBetween(ctx context.Context, start, end Date) ([]Subscription, error) {
	var subs []Subscription
	err := s.db.WithContext(ctx).
		Where("next_payment BETWEEN ? AND ?", start, end).
		Order("next_payment, id").
		Find(&subs).Error
	return subs, err
}

// ListUnsettledLoansWithReminderOn needs the reminder_date column; callers
// consult SchemaCapabilities first.
func (s *Store) ListUnsettledLoansWithReminderOn(ctx context.Context, day Date) ([]Loan, error) {
	var loans []Loan
	err := s.db.WithContext(ctx).
		Where("is_settled = ? AND reminder_date = ?", false, day).
		Order("id").
		Find(&loans).Error
	return loans, err
}

// ListUnsettledLoansWithoutReminder returns every unsettled loan when the
// reminder_date column is missing, otherwise only those with no reminder set.
func (s *Store) ListUnsettledLoansWithoutReminder(ctx context.Context) ([]Loan, error) {
	tx := s.db.WithContext(ctx).Where("is_settled = ?", false)
	if s.caps.LoanReminderDate {
		tx = tx.Where("(reminder_date IS NULL OR reminder_date = '')")
	}
	var loans []Loan
	err := tx.Order("id").Find(&loans).Error
	return loans, err
}

func (s *Store) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]Notification, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	list := []Notification{}
	if err := tx.Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *Store) LinkChat(ctx context.Context, userID uint, chatID int64, userName string) error {
	chat := NotifiedChat{TelegramChatID: chatID}
	return s.db.WithContext(ctx).
		Where(NotifiedChat{TelegramChatID: chatID}).
		Assign(NotifiedChat{UserID: userID, UserName: userName}).
		FirstOrCreate(&chat).Error
}

func (s *Store) UnlinkChat(ctx context.Context, chatID int64) error {
	return s.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).Delete(&NotifiedChat{}).Error
}

func (s *Store) ChatsForUser(ctx context.Context, userID uint) ([]NotifiedChat, error) {
	var chats []NotifiedChat
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&chats).Error
	return chats, err
}

// UserForChat returns 0 when the chat is not linked.
func (s *Store) UserForChat(ctx context.Context, chatID int64) (uint, error) {
	var chat NotifiedChat
	err := s.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return chat.UserID, nil
}
