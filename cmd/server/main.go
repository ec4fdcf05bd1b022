package main

import (
	"context"
	"log"
	"net/http"

	"github.com/ascendancy-esports/tournament-backend/internal/config"
	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/ascendancy-esports/tournament-backend/internal/httpapi"
	"github.com/ascendancy-esports/tournament-backend/internal/identity"
	"github.com/ascendancy-esports/tournament-backend/internal/mapdata"
	"github.com/ascendancy-esports/tournament-backend/internal/matches"
	"github.com/ascendancy-esports/tournament-backend/internal/notify"
	"github.com/ascendancy-esports/tournament-backend/internal/orders"
	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"github.com/ascendancy-esports/tournament-backend/internal/teams"
	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&identity.User{},
		&teams.Team{},
		&teams.Member{},
		&matches.Match{},
		&orders.Payment{},
	); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	userStore := identity.NewStore(db)
	teamStore := teams.NewStore(db)
	matchStore := matches.NewStore(db)
	orderSvc := orders.NewService(
		razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		db,
		logger.Named("orders"),
	)

	var notifier registry.Notifier
	if cfg.SMTPHost != "" {
		mailer, err := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, logger.Named("notify"))
		if err != nil {
			logger.Fatal("mailer", zap.Error(err))
		}
		notifier = mailer
	} else {
		logger.Warn("SMTP not configured, room credential emails disabled")
	}

	ctx := context.Background()
	reg := registry.New(ctx, userStore, notifier, matchStore, mapdata.IDs(), registry.Options{
		TTL:           cfg.RoomTTL,
		SweepInterval: cfg.SweepInterval,
		Rules:         engine.Rules{SideSelect: cfg.SideSelectPolicy},
	}, logger.Named("registry"))

	srv := httpapi.NewServer(reg, userStore, teamStore, matchStore, orderSvc, logger.Named("http"))
	handler := httpapi.SetupRoutes(srv, cfg.FrontendOrigin)

	logger.Info("listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
