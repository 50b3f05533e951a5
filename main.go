package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gorm.io/driver/sqlite" // Sqlite driver based on GGO

	"gorm.io/gorm"
)

func openDatabase(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory %v: %w", dir, err)
		}
	}
	return gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{})
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	interval, _ := cfg.Interval()
	loc, _ := cfg.Location()

	db, err := openDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	caps, err := detectCapabilities(db, cfg.AddReminderColumn)
	if err != nil {
		log.Fatalf("failed to inspect loans table: %v", err)
	}
	log.Printf("schema capabilities: %+v", caps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := NewStore(db, loc, caps)
	clock := systemClock{loc: loc}

	var deliverer Deliverer
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("failed to create bot: %v", err)
		}
		log.Printf("Authorized on account %s", bot.Self.UserName)
		deliverer = NewTelegramDispatcher(bot, store)
		go runBot(ctx, bot, NewBotHandler(bot, store, cfg.TelegramLinkSecret))
	}

	scheduler := NewScheduler(interval, clock,
		NewSubscriptionRenewalChecker(store, store, deliverer, clock, cfg.LookaheadDays),
		NewLoanReminderChecker(store, store, deliverer, clock, caps, cfg.LegacyLoanAgeDays),
	)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var srv *http.Server
	if cfg.HTTPAddress != "" {
		srv = &http.Server{Addr: cfg.HTTPAddress, Handler: NewAPIServer(store, cfg.JWTSecret).Handler()}
		go func() {
			log.Printf("notification API listening on %v", cfg.HTTPAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("listen: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Printf("shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
