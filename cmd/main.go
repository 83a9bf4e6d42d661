package main

import (
	"log"

	"github.com/ledgereye/internal/api"
	"github.com/ledgereye/internal/auth"
	"github.com/ledgereye/internal/config"
	"github.com/ledgereye/internal/database"
	"github.com/ledgereye/internal/executor"
	"github.com/ledgereye/internal/models"
	"github.com/ledgereye/internal/notify"
	"github.com/ledgereye/internal/report"
	"github.com/ledgereye/internal/scheduler"
	"github.com/ledgereye/internal/store"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()
	auth.SetSecret(cfg.Server.JWTSecret)

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	db := database.GetDB()
	loc := cfg.Timezone()

	// Create a default admin user on first start
	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		log.Printf("Warning: Failed to count users: %v", err)
	} else if userCount == 0 {
		admin := &models.User{Username: "admin", Role: models.RoleAdmin, IsActive: true}
		if err := admin.SetPassword("admin"); err != nil {
			log.Printf("Warning: Failed to hash default password: %v", err)
		} else if err := db.Create(admin).Error; err != nil {
			log.Printf("Warning: Failed to create default admin user: %v", err)
		} else {
			log.Printf("Created default admin user (username: admin), change its password")
		}
	}

	st := store.NewStore(db, loc)

	// Wire the execution pipeline: renderer -> notifier -> executor
	generator := report.NewGenerator(db, loc)
	emailNotifier := notify.NewEmailNotifier(notify.EmailConfig{
		SMTPHost: cfg.Email.SMTPHost,
		SMTPPort: cfg.Email.SMTPPort,
		From:     cfg.Email.From,
		Password: cfg.Email.Password,
	})

	exec := executor.NewExecutor(st, generator, emailNotifier, cfg.Scheduler.CallTimeout)
	if cfg.Slack.Token != "" {
		exec.SetFailureAlerter(notify.NewSlackAlerter(cfg.Slack.Token, cfg.Slack.Channel))
	}

	// Start the scheduler loop
	sched := scheduler.NewScheduler(st, exec, cfg.Scheduler.Interval, cfg.Scheduler.LeaseDuration)
	sched.Start()
	defer sched.Stop()

	// Initialize and start API server
	server := api.NewServer(st, sched)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
