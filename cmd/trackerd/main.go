package main

import (
	"context"
	"errors"
	"time"

	"pricewatch-backend/lib/botapi"
	"pricewatch-backend/lib/configutil"
	configsqlite "pricewatch-backend/lib/configutil/sqlite"
	"pricewatch-backend/lib/notify"
	"pricewatch-backend/lib/scrapers/ekatalog"
	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/telemetry"
	"pricewatch-backend/services/telegrambot"
	"pricewatch-backend/services/tracker"
	trackerdb "pricewatch-backend/services/tracker/db"
)

type TrackerConfig struct {
	CheckIntervalMinutes int `json:"check_interval_minutes"`
	InitialDelaySeconds  int `json:"initial_delay_seconds"`
}

type TelegramConfig struct {
	Token string `json:"token"`
}

type Config struct {
	Debug    bool                `json:"debug"`
	Database configsqlite.Struct `json:"database"`
	Telegram TelegramConfig      `json:"telegram"`
	// fallback delivery for deployments without a bot token, user ids
	// are then email addresses
	Smtp    *notify.SmtpConfig `json:"smtp"`
	Tracker TrackerConfig      `json:"tracker"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Debug)

	t, err := telemetry.SetupFromEnv(ctx, "trackerd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	db, err := config.Database.OpenDB(trackerdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	opts := tracker.Options{
		CheckInterval: time.Duration(config.Tracker.CheckIntervalMinutes) * time.Minute,
		InitialDelay:  time.Duration(config.Tracker.InitialDelaySeconds) * time.Second,
	}
	source := ekatalog.NewClient()

	var api *botapi.Client
	var notifier tracker.Notifier
	switch {
	case config.Telegram.Token != "":
		api = botapi.NewClient(config.Telegram.Token)
		notifier = telegrambot.NewNotifier(api)
	case config.Smtp != nil:
		notifier = notify.NewEmailNotifier(*config.Smtp)
	default:
		serviceutil.Fatal(
			"no notification transport configured",
			errors.New("set telegram.token or smtp in config.json5"),
		)
	}

	service, err := tracker.NewService(ctx, db, source, notifier, opts)
	if err != nil {
		serviceutil.Fatal("failed to start tracker", err)
	}

	if api != nil {
		go telegrambot.New(api, service).Run(ctx)
	}

	<-ctx.Done()
}
