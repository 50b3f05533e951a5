package main

import (
	"context"
	"fmt"
	"log"
)

const subscriptionRenewalTitle = "Upcoming Subscription Renewal"

type SubscriptionRenewalChecker struct {
	subscriptions SubscriptionStore
	notifications NotificationStore
	deliverer     Deliverer
	clock         Clock
	lookaheadDays int
}

func NewSubscriptionRenewalChecker(subs SubscriptionStore, notifications NotificationStore, deliverer Deliverer, clock Clock, lookaheadDays int) *SubscriptionRenewalChecker {
	return &SubscriptionRenewalChecker{
		subscriptions: subs,
		notifications: notifications,
		deliverer:     deliverer,
		clock:         clock,
		lookaheadDays: lookaheadDays,
	}
}

func (c *SubscriptionRenewalChecker) Name() string {
	return "subscription renewals"
}

func (c *SubscriptionRenewalChecker) Run(ctx context.Context, today Date) {
	subs, err := c.subscriptions.ListSubscriptionsDueBetween(ctx, today, today.AddDays(c.lookaheadDays))
	if err != nil {
		log.Printf("error checking subscriptions: %v", err)
		return
	}
	for _, sub := range subs {
		if err := c.check(ctx, today, sub); err != nil {
			log.Printf("error checking subscription %v: %v", sub.ID, err)
		}
	}
}

func (c *SubscriptionRenewalChecker) check(ctx context.Context, today Date, sub Subscription) error {
	existing, err := c.notifications.FindNotification(ctx, NotificationQuery{
		UserID:    sub.UserID,
		RelatedID: sub.ID,
		Type:      NotificationSubscription,
		CreatedOn: &today,
	})
	if err != nil {
		return fmt.Errorf("looking up today's notification: %w", err)
	}
	if existing != nil {
		return nil
	}
	n := Notification{
		UserID:    sub.UserID,
		Type:      NotificationSubscription,
		Title:     subscriptionRenewalTitle,
		Message:   renewalMessage(sub, sub.NextPayment.DaysSince(today)),
		RelatedID: sub.ID,
		CreatedAt: c.clock.Now(),
	}
	if err := insertNotification(ctx, c.notifications, c.deliverer, n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func renewalMessage(sub Subscription, daysUntilRenewal int) string {
	amount := formatAmount(sub.Amount)
	if daysUntilRenewal == 0 {
		return fmt.Sprintf("Your subscription to %v renews today for %v.", sub.Name, amount)
	}
	return fmt.Sprintf("Your subscription to %v will renew in %d %v for %v.",
		sub.Name, daysUntilRenewal, plural(daysUntilRenewal, "day"), amount)
}
