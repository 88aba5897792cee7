package middleware

import (
	"context"
	"log"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/aiexz/koy-kizi/internal/directory"
)

// Middleware runs before every command handler.
type Middleware struct {
	Users *directory.Directory
}

func (m *Middleware) Group(b *gotgbot.Bot, ctx *ext.Context) error {
	err := MessageLogger(b, ctx)
	if err != nil {
		return err
	}
	return m.UserHandler(b, ctx)
}

func MessageLogger(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil || ctx.EffectiveMessage == nil {
		return nil
	}
	log.Printf("[%s] %s", displayName(ctx.EffectiveUser), ctx.EffectiveMessage.Text)
	return nil
}

// UserHandler remembers the sender and every user carried by a text mention,
// so later @username mentions can be resolved.
func (m *Middleware) UserHandler(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveUser == nil {
		return nil
	}
	users := []gotgbot.User{*ctx.EffectiveUser}
	if ctx.EffectiveMessage != nil {
		for _, entity := range ctx.EffectiveMessage.Entities {
			if entity.Type == "text_mention" && entity.User != nil {
				users = append(users, *entity.User)
			}
		}
	}
	for _, u := range users {
		if u.IsBot {
			continue
		}
		if err := m.Users.Remember(context.Background(), FromTelegram(u)); err != nil {
			log.Printf("cannot remember user %d: %v", u.Id, err)
		}
	}
	return nil
}

// FromTelegram converts a Telegram user into a directory entry.
func FromTelegram(u gotgbot.User) directory.User {
	return directory.User{
		UserID:   u.Id,
		Username: u.Username,
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
}

func displayName(u *gotgbot.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName + " " + u.LastName
}
