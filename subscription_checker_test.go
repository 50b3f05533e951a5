package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newSubscriptionChecker(store *Store, clock Clock) (*SubscriptionRenewalChecker, *recordingDeliverer) {
	d := &recordingDeliverer{}
	return NewSubscriptionRenewalChecker(store, store, d, clock, 5), d
}

func TestSubscriptionChecker_Messages(t *testing.T) {
	day := DateOf(testNow)
	cases := []struct {
		name   string
		offset int
		want   string
	}{
		{"today", 0, "Your subscription to Netflix renews today for 15.99."},
		{"tomorrow", 1, "Your subscription to Netflix will renew in 1 day for 15.99."},
		{"two days", 2, "Your subscription to Netflix will renew in 2 days for 15.99."},
		{"three days", 3, "Your subscription to Netflix will renew in 3 days for 15.99."},
		{"window end", 5, "Your subscription to Netflix will renew in 5 days for 15.99."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, store := newTestStore(t)
			sub := seedSubscription(t, db, 1, "Netflix", "15.99", day.AddDays(tc.offset))
			checker, delivered := newSubscriptionChecker(store, newFixedClock(testNow))

			checker.Run(context.Background(), day)

			list := allNotifications(t, db)
			if len(list) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(list))
			}
			n := list[0]
			if n.Message != tc.want {
				t.Fatalf("message: got %q, want %q", n.Message, tc.want)
			}
			if n.Title != "Upcoming Subscription Renewal" || n.Type != NotificationSubscription {
				t.Fatalf("unexpected notification: %+v", n)
			}
			if n.RelatedID != sub.ID || n.UserID != 1 || n.IsRead {
				t.Fatalf("unexpected notification: %+v", n)
			}
			if len(delivered.delivered) != 1 || delivered.delivered[0].ID != n.ID {
				t.Fatalf("expected delivery of notification %v, got %+v", n.ID, delivered.delivered)
			}
		})
	}
}

func TestSubscriptionChecker_WholeAmount(t *testing.T) {
	day := DateOf(testNow)
	db, store := newTestStore(t)
	seedSubscription(t, db, 1, "Gym", "50", day.AddDays(3))
	checker, _ := newSubscriptionChecker(store, newFixedClock(testNow))

	checker.Run(context.Background(), day)

	list := allNotifications(t, db)
	if len(list) != 1 || list[0].Message != "Your subscription to Gym will renew in 3 days for 50." {
		t.Fatalf("unexpected notifications: %+v", list)
	}
}

func TestSubscriptionChecker_OutsideWindow(t *testing.T) {
	day := DateOf(testNow)
	db, store := newTestStore(t)
	seedSubscription(t, db, 1, "Past", "1", day.AddDays(-1))
	seedSubscription(t, db, 1, "Later", "1", day.AddDays(6))
	checker, _ := newSubscriptionChecker(store, newFixedClock(testNow))

	checker.Run(context.Background(), day)

	if count := countNotifications(t, db, ""); count != 0 {
		t.Fatalf("expected no notifications, got %d", count)
	}
}

func TestSubscriptionChecker_OncePerDay(t *testing.T) {
	day := DateOf(testNow)
	db, store := newTestStore(t)
	seedSubscription(t, db, 1, "Spotify", "9.99", day.AddDays(2))
	seedSubscription(t, db, 2, "Cloud", "3", day.AddDays(4))
	clock := newFixedClock(testNow)
	checker, _ := newSubscriptionChecker(store, clock)

	checker.Run(context.Background(), day)
	clock.advance(6 * time.Hour)
	checker.Run(context.Background(), day)

	if count := countNotifications(t, db, ""); count != 2 {
		t.Fatalf("expected 2 notifications after same-day rerun, got %d", count)
	}

	clock.advance(24 * time.Hour)
	checker.Run(context.Background(), day.AddDays(1))

	if count := countNotifications(t, db, ""); count != 4 {
		t.Fatalf("expected 4 notifications after next day run, got %d", count)
	}
	var latest Notification
	db.Where("user_id = ?", 1).Order("id DESC").First(&latest)
	if latest.Message != "Your subscription to Spotify will renew in 1 day for 9.99." {
		t.Fatalf("unexpected next day message: %q", latest.Message)
	}
}

func TestSubscriptionChecker_ReadNotificationStillDedups(t *testing.T) {
	day := DateOf(testNow)
	db, store := newTestStore(t)
	seedSubscription(t, db, 1, "Spotify", "9.99", day.AddDays(2))
	checker, _ := newSubscriptionChecker(store, newFixedClock(testNow))

	checker.Run(context.Background(), day)
	if _, err := store.MarkAllRead(context.Background(), 1); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	checker.Run(context.Background(), day)

	if count := countNotifications(t, db, ""); count != 1 {
		t.Fatalf("expected 1 notification, got %d", count)
	}
}

type failingNotificationStore struct {
	NotificationStore
	failFind   uint
	failInsert uint
}

func (f failingNotificationStore) FindNotification(ctx context.Context, q NotificationQuery) (*Notification, error) {
	if q.RelatedID == f.failFind {
		return nil, errors.New("database is locked")
	}
	return f.NotificationStore.FindNotification(ctx, q)
}

func (f failingNotificationStore) InsertNotification(ctx context.Context, n *Notification) (uint, error) {
	if n.RelatedID == f.failInsert {
		return 0, errors.New("disk I/O error")
	}
	return f.NotificationStore.InsertNotification(ctx, n)
}

func TestSubscriptionChecker_FailureIsolation(t *testing.T) {
	day := DateOf(testNow)
	db, store := newTestStore(t)
	a := seedSubscription(t, db, 1, "A", "1", day.AddDays(1))
	b := seedSubscription(t, db, 1, "B", "2", day.AddDays(2))
	c := seedSubscription(t, db, 1, "C", "3", day.AddDays(3))
	failing := failingNotificationStore{NotificationStore: store, failFind: a.ID, failInsert: b.ID}
	checker := NewSubscriptionRenewalChecker(store, failing, nil, newFixedClock(testNow), 5)

	checker.Run(context.Background(), day)

	list := allNotifications(t, db)
	if len(list) != 1 || list[0].RelatedID != c.ID {
		t.Fatalf("expected only subscription %v to be notified, got %+v", c.ID, list)
	}
}

type failingSubscriptionStore struct{}

func (failingSubscriptionStore) ListSubscriptionsDueBetween(context.Context, Date, Date) ([]Subscription, error) {
	return nil, errors.New("no such table: subscriptions")
}

func TestSubscriptionChecker_QueryFailure(t *testing.T) {
	db, store := newTestStore(t)
	checker := NewSubscriptionRenewalChecker(failingSubscriptionStore{}, store, nil, newFixedClock(testNow), 5)

	checker.Run(context.Background(), DateOf(testNow))

	if count := countNotifications(t, db, ""); count != 0 {
		t.Fatalf("expected no notifications, got %d", count)
	}
}

func TestSubscriptionChecker_FinanceSchema(t *testing.T) {
	day := DateOf(testNow)
	db, store := newFinanceStore(t)
	execSQL(t, db, `INSERT INTO subscriptions (user_id, name, amount, billing_cycle, next_payment) VALUES
		(1, 'Cloud', 9.5, 'monthly', '2026-10-21'),
		(1, 'Later', 3, 'yearly', '2026-10-24')`)
	// sent yesterday by the finance application, so today's run still notifies
	execSQL(t, db, `INSERT INTO notifications (user_id, type, title, message, related_id, created_at) VALUES
		(1, 'subscription', 'Upcoming Subscription Renewal', 'old', 1, '2026-10-17T22:00:00.000Z')`)
	checker, delivered := newSubscriptionChecker(store, newFixedClock(testNow))

	checker.Run(context.Background(), day)
	checker.Run(context.Background(), day)

	list := allNotifications(t, db)
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %+v", len(list), list)
	}
	n := list[1]
	if n.Message != "Your subscription to Cloud will renew in 3 days for 9.5." || n.RelatedID != 1 || n.IsRead {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(delivered.delivered) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(delivered.delivered))
	}
}
