package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/aiexz/koy-kizi/internal/bot"
	"github.com/aiexz/koy-kizi/internal/config"
	"github.com/aiexz/koy-kizi/internal/directory"
	"github.com/aiexz/koy-kizi/internal/game"
	"github.com/aiexz/koy-kizi/internal/middleware"
	"github.com/aiexz/koy-kizi/internal/session"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("cannot load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := game.Open(game.DSN(cfg.DatabasePath))
	if err != nil {
		log.Fatalf("cannot open database %s: %v", cfg.DatabasePath, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("cannot get database handle: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("closing database: %v", err)
		}
		log.Println("database closed")
	}()
	if err = game.Migrate(db); err != nil {
		log.Fatalf("cannot migrate: %v", err)
	}
	users := directory.New(db)
	if err = users.Migrate(); err != nil {
		log.Fatalf("cannot migrate users: %v", err)
	}

	store := game.NewStore(db)
	registry := session.NewRegistry(store, session.Defaults{
		WinningScore: cfg.WinningScore,
		Location:     cfg.DefaultLocation,
	})
	h := bot.NewHandler(registry, store, users, cfg)
	mw := &middleware.Middleware{Users: users}

	b, err := gotgbot.NewBot(cfg.Token, &gotgbot.BotOpts{
		UseTestEnvironment: false,
		Client:             http.Client{},
		DefaultRequestOpts: &gotgbot.RequestOpts{
			Timeout: gotgbot.DefaultTimeout,
			APIURL:  gotgbot.DefaultAPIURL,
		},
	})
	if err != nil {
		log.Fatalf("cannot create bot: %v", err)
	}
	updater := ext.NewUpdater(&ext.UpdaterOpts{
		ErrorLog: nil,
		DispatcherOpts: ext.DispatcherOpts{
			// A failed reply never stops the bot; the update is dropped and logged.
			Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
				log.Println("an error occurred while handling update:", err.Error())
				return ext.DispatcherActionNoop
			},
			MaxRoutines: ext.DefaultMaxRoutines,
		},
	})
	dispatcher := updater.Dispatcher
	dispatcher.AddHandlerToGroup(handlers.NewMessage(message.All, mw.Group), 0)

	commands := []struct {
		name string
		cmd  bot.Command
	}{
		{"start", h.Help},
		{"help", h.Help},
		{"startgame", h.StartGame},
		{"round", h.Round},
		{"fixround", h.FixRound},
		{"scores", h.Scores},
		{"endgame", h.EndGame},
		{"stats", h.Stats},
		{"gamestats", h.GameStats},
		{"deletegame", h.DeleteGame},
		{"listgames", h.ListGames},
		{"listplayedgames", h.ListPlayedGames},
		{"createplayer", h.CreatePlayer},
		{"listplayers", h.ListPlayers},
		{"backupdb", h.BackupDB},
	}
	for _, c := range commands {
		dispatcher.AddHandlerToGroup(handlers.NewCommand(c.name, h.Wrap(c.name, c.cmd)), 1)
	}

	log.Println("Bot is starting")
	if cfg.WebhookURL != "" {
		webhookOpts := ext.WebhookOpts{
			Listen:      "0.0.0.0",
			Port:        cfg.WebhookPort,
			URLPath:     cfg.Token, // updates are only accepted on the token path
			SecretToken: cfg.WebhookSecret,
		}
		err = updater.StartWebhook(b, webhookOpts)
		if err != nil {
			log.Fatalf("failed to start webhook: %v", err)
		}
		_, err = b.SetWebhook(webhookOpts.GetWebhookURL(cfg.WebhookURL), &gotgbot.SetWebhookOpts{
			MaxConnections:     100,
			DropPendingUpdates: true,
			SecretToken:        cfg.WebhookSecret,
		})
	} else {
		err = updater.StartPolling(b, &ext.PollingOpts{
			DropPendingUpdates: true,
			GetUpdatesOpts: gotgbot.GetUpdatesOpts{
				Timeout: 9,
				RequestOpts: &gotgbot.RequestOpts{
					Timeout: time.Second * 60,
				},
			},
		})
	}
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	fmt.Printf("%s has been started...\n", b.User.Username)
	updater.Idle()
}
