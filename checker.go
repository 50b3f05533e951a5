package main

import (
	"context"
	"log"
)

// Checker scans one kind of recurring obligation and writes notifications
// for the given day. Failures are logged per item and never returned.
type Checker interface {
	Name() string
	Run(ctx context.Context, today Date)
}

// Deliverer pushes a freshly stored notification to an outside channel.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification)
}

func insertNotification(ctx context.Context, store NotificationStore, deliverer Deliverer, n Notification) error {
	id, err := store.InsertNotification(ctx, &n)
	if err != nil {
		return err
	}
	n.ID = id
	log.Printf("created %v notification %v for user %v (related %v)", n.Type, id, n.UserID, n.RelatedID)
	if deliverer != nil {
		deliverer.Deliver(ctx, n)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
