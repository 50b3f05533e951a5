package main

import (
	"context"
	"fmt"
	"log"
)

// LoanReminderChecker notifies about unsettled loans in two passes: loans
// whose reminder date is today, and older loans without a reminder date that
// have been open for at least legacyAgeDays.
type LoanReminderChecker struct {
	loans         LoanStore
	notifications NotificationStore
	deliverer     Deliverer
	clock         Clock
	caps          SchemaCapabilities
	legacyAgeDays int
}

func NewLoanReminderChecker(loans LoanStore, notifications NotificationStore, deliverer Deliverer, clock Clock, caps SchemaCapabilities, legacyAgeDays int) *LoanReminderChecker {
	return &LoanReminderChecker{
		loans:         loans,
		notifications: notifications,
		deliverer:     deliverer,
		clock:         clock,
		caps:          caps,
		legacyAgeDays: legacyAgeDays,
	}
}

func (c *LoanReminderChecker) Name() string {
	return "loan reminders"
}

func (c *LoanReminderChecker) Run(ctx context.Context, today Date) {
	if c.caps.LoanReminderDate {
		c.checkReminderDates(ctx, today)
	}
	c.checkLegacyLoans(ctx, today)
}

func (c *LoanReminderChecker) checkReminderDates(ctx context.Context, today Date) {
	loans, err := c.loans.ListUnsettledLoansWithReminderOn(ctx, today)
	if err != nil {
		log.Printf("error checking loans: %v", err)
		return
	}
	for _, loan := range loans {
		if err := c.remindToday(ctx, today, loan); err != nil {
			log.Printf("error checking loan %v: %v", loan.ID, err)
		}
	}
}

func (c *LoanReminderChecker) remindToday(ctx context.Context, today Date, loan Loan) error {
	existing, err := c.notifications.FindNotification(ctx, NotificationQuery{
		RelatedID: loan.ID,
		Type:      loan.notificationType(),
		CreatedOn: &today,
	})
	if err != nil {
		return fmt.Errorf("looking up today's notification: %w", err)
	}
	if existing != nil {
		return nil
	}
	amount := formatAmount(loan.Amount)
	n := Notification{
		UserID:    loan.UserID,
		Type:      loan.notificationType(),
		Title:     "Loan Repayment Due Today",
		Message:   fmt.Sprintf("Today is the day to repay %v to %v.", amount, loan.Person),
		RelatedID: loan.ID,
		CreatedAt: c.clock.Now(),
	}
	if loan.IsLent {
		n.Title = "Money to Collect Today"
		n.Message = fmt.Sprintf("Today is the day to collect %v from %v.", amount, loan.Person)
	}
	if err := insertNotification(ctx, c.notifications, c.deliverer, n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (c *LoanReminderChecker) checkLegacyLoans(ctx context.Context, today Date) {
	loans, err := c.loans.ListUnsettledLoansWithoutReminder(ctx)
	if err != nil {
		log.Printf("error checking old loans: %v", err)
		return
	}
	for _, loan := range loans {
		daysSinceLoan := today.DaysSince(DateOf(loan.Date.In(c.clock.Now().Location())))
		if daysSinceLoan < c.legacyAgeDays {
			continue
		}
		if err := c.remindOverdue(ctx, daysSinceLoan, loan); err != nil {
			log.Printf("error checking old loan %v: %v", loan.ID, err)
		}
	}
}

// remindOverdue is suppressed only while an unread notification exists, so a
// dismissed reminder comes back on the next run.
func (c *LoanReminderChecker) remindOverdue(ctx context.Context, daysSinceLoan int, loan Loan) error {
	existing, err := c.notifications.FindNotification(ctx, NotificationQuery{
		RelatedID:  loan.ID,
		Type:       loan.notificationType(),
		UnreadOnly: true,
	})
	if err != nil {
		return fmt.Errorf("looking up unread notification: %w", err)
	}
	if existing != nil {
		return nil
	}
	amount := formatAmount(loan.Amount)
	n := Notification{
		UserID:    loan.UserID,
		Type:      loan.notificationType(),
		Title:     "Loan Repayment Due",
		Message:   fmt.Sprintf("It's been %d days. Remember to repay %v to %v.", daysSinceLoan, amount, loan.Person),
		RelatedID: loan.ID,
		CreatedAt: c.clock.Now(),
	}
	if loan.IsLent {
		n.Title = "Money to Collect"
		n.Message = fmt.Sprintf("It's been %d days. Remember to collect %v from %v.", daysSinceLoan, amount, loan.Person)
	}
	if err := insertNotification(ctx, c.notifications, c.deliverer, n); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}
