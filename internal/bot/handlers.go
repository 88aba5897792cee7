package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/aiexz/koy-kizi/internal/config"
	"github.com/aiexz/koy-kizi/internal/directory"
	"github.com/aiexz/koy-kizi/internal/game"
	"github.com/aiexz/koy-kizi/internal/middleware"
	"github.com/aiexz/koy-kizi/internal/session"
)

// Records is the read side of the storage engine plus player registration.
type Records interface {
	FindPlayer(ctx context.Context, name string) (game.Player, error)
	GetOrCreatePlayer(ctx context.Context, name string) (uint, error)
	ListPlayers(ctx context.Context) ([]game.Player, error)
	PlayerStatistics(ctx context.Context, playerID uint) (game.Statistics, error)
	GameDetails(ctx context.Context, gameID uint) (game.Details, error)
	PagedGameHistory(ctx context.Context, offset, limit int) ([]game.Summary, int64, error)
	Backup(ctx context.Context, dir string) (string, error)
}

// Users resolves @username mentions.
type Users interface {
	Lookup(ctx context.Context, username string) (session.Identity, error)
}

type unseenUserError struct {
	Username string
}

func (e *unseenUserError) Error() string {
	return fmt.Sprintf("user @%s has not been seen yet", e.Username)
}

const genericFailure = "Something went wrong, please try again later."

type Handler struct {
	Registry *session.Registry
	Records  Records
	Users    Users
	Config   config.Config

	now func() time.Time
}

func NewHandler(registry *session.Registry, records Records, users Users, cfg config.Config) *Handler {
	return &Handler{
		Registry: registry,
		Records:  records,
		Users:    users,
		Config:   cfg,
		now:      time.Now,
	}
}

// Command adapts a reply producing function to a gotgbot handler.
type Command func(ctx context.Context, chat int64, sender *gotgbot.User, args string) string

func (h *Handler) Wrap(name string, cmd Command) func(b *gotgbot.Bot, ctx *ext.Context) error {
	return func(b *gotgbot.Bot, ctx *ext.Context) error {
		if ctx.EffectiveMessage == nil || ctx.EffectiveChat == nil {
			return nil
		}
		text := cmd(context.Background(), ctx.EffectiveChat.Id, ctx.EffectiveUser, commandArgs(ctx.EffectiveMessage.Text))
		if text == "" {
			return nil
		}
		_, err := ctx.EffectiveMessage.Reply(b, text, &gotgbot.SendMessageOpts{})
		if err != nil {
			return fmt.Errorf("reply to /%s: %w", name, err)
		}
		return nil
	}
}

func (h *Handler) fail(op string, err error) string {
	if text := renderError(err); text != "" {
		return text
	}
	log.Printf("%s: %v", op, err)
	return genericFailure
}

func (h *Handler) resolve(ctx context.Context, username string) (session.Identity, error) {
	id, err := h.Users.Lookup(ctx, username)
	if errors.Is(err, directory.ErrUnknownUser) {
		return session.Identity{}, &unseenUserError{Username: username}
	}
	return id, err
}

func (h *Handler) StartGame(ctx context.Context, chat int64, _ *gotgbot.User, args string) string {
	parsed, err := ParseStart(args)
	if err != nil {
		return err.Error()
	}
	if len(parsed.Usernames) == 0 {
		return renderError(session.ErrEmptyRoster)
	}
	players := make([]session.Identity, 0, len(parsed.Usernames))
	for _, name := range parsed.Usernames {
		id, err := h.resolve(ctx, name)
		if err != nil {
			return h.fail("startgame", err)
		}
		players = append(players, id)
	}
	s := h.Registry.Session(chat)
	gameID, err := s.StartGame(ctx, players, parsed.WinningScore, parsed.Location)
	if err != nil {
		return h.fail("startgame", err)
	}
	board, err := s.CurrentScores(ctx)
	if err != nil {
		return fmt.Sprintf("New game started! Game ID: %d", gameID)
	}
	return renderStart(gameID, board)
}

func (h *Handler) roundInput(ctx context.Context, parsed RoundArgs) ([]session.Entry, *session.Identity, []string, error) {
	entries := make([]session.Entry, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		id, err := h.resolve(ctx, e.Username)
		if err != nil {
			return nil, nil, nil, err
		}
		entries = append(entries, session.Entry{Player: id, Score: e.Score, Style: e.Style, Errors: e.Errors})
	}
	if parsed.Ender == "" {
		return entries, nil, nil, nil
	}
	ender, err := h.resolve(ctx, parsed.Ender)
	var unseen *unseenUserError
	if errors.As(err, &unseen) {
		return entries, nil, []string{fmt.Sprintf("round ender @%s is unknown, round saved without an ender", parsed.Ender)}, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return entries, &ender, nil, nil
}

func (h *Handler) Round(ctx context.Context, chat int64, _ *gotgbot.User, args string) string {
	s, ok := h.Registry.Lookup(chat)
	if !ok {
		return renderError(session.ErrNoActiveGame)
	}
	parsed, err := ParseRound(args)
	if err != nil {
		return err.Error()
	}
	entries, ender, warnings, err := h.roundInput(ctx, parsed)
	if err != nil {
		return h.fail("round", err)
	}
	res, err := s.SubmitRound(ctx, entries, ender)
	if err != nil {
		return h.fail("round", err)
	}
	res.Warnings = append(warnings, res.Warnings...)
	return renderRound(res)
}

func (h *Handler) FixRound(ctx context.Context, chat int64, _ *gotgbot.User, args string) string {
	s, ok := h.Registry.Lookup(chat)
	if !ok {
		return renderError(session.ErrNoActiveGame)
	}
	number, parsed, err := ParseFix(args)
	if err != nil {
		return err.Error()
	}
	entries, ender, warnings, err := h.roundInput(ctx, parsed)
	if err != nil {
		return h.fail("fixround", err)
	}
	res, err := s.CorrectRound(ctx, number, entries, ender)
	if err != nil {
		return h.fail("fixround", err)
	}
	res.Warnings = append(warnings, res.Warnings...)
	return renderRound(res)
}

func (h *Handler) Scores(ctx context.Context, chat int64, _ *gotgbot.User, _ string) string {
	s, ok := h.Registry.Lookup(chat)
	if !ok {
		return renderError(session.ErrNoActiveGame)
	}
	board, err := s.CurrentScores(ctx)
	if err != nil {
		return h.fail("scores", err)
	}
	return renderScoreboard(board)
}

func (h *Handler) EndGame(ctx context.Context, chat int64, _ *gotgbot.User, _ string) string {
	s, ok := h.Registry.Lookup(chat)
	if !ok {
		return renderError(session.ErrNoActiveGame)
	}
	board, err := s.EndEarly(ctx)
	if err != nil {
		return h.fail("endgame", err)
	}
	return renderEndEarly(board)
}

// Stats shows the statistics of the mentioned player, or of the sender.
func (h *Handler) Stats(ctx context.Context, _ int64, sender *gotgbot.User, args string) string {
	var name string
	if mention, ok := parseMention(args); ok {
		id, err := h.resolve(ctx, mention)
		if err != nil {
			return h.fail("stats", err)
		}
		name = id.Name
	} else if args != "" {
		return "Usage: /stats [@user]"
	} else if sender != nil {
		name = middleware.FromTelegram(*sender).Identity().Name
	}
	if name == "" {
		return "Usage: /stats [@user]"
	}
	player, err := h.Records.FindPlayer(ctx, name)
	if errors.Is(err, game.ErrPlayerNotFound) {
		return fmt.Sprintf("%s has not played any game yet.", name)
	}
	if err != nil {
		return h.fail("stats", err)
	}
	stats, err := h.Records.PlayerStatistics(ctx, player.ID)
	if err != nil {
		return h.fail("stats", err)
	}
	return renderStats(stats, h.now())
}

func parseGameID(args string) (uint, bool) {
	id, err := strconv.ParseUint(args, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) GameStats(ctx context.Context, _ int64, _ *gotgbot.User, args string) string {
	id, ok := parseGameID(args)
	if !ok {
		return "Usage: /gamestats <game id>"
	}
	details, err := h.Records.GameDetails(ctx, id)
	if err != nil {
		return h.fail("gamestats", err)
	}
	return renderDetails(details)
}

func (h *Handler) DeleteGame(ctx context.Context, _ int64, _ *gotgbot.User, args string) string {
	id, ok := parseGameID(args)
	if !ok {
		return "Usage: /deletegame <game id>"
	}
	dropped, err := h.Registry.DeleteGame(ctx, id)
	if err != nil {
		return h.fail("deletegame", err)
	}
	if dropped {
		return fmt.Sprintf("Game %d was deleted. It was still running, its chat can start a new game now.", id)
	}
	return fmt.Sprintf("Game %d was deleted.", id)
}

func (h *Handler) ListGames(ctx context.Context, _ int64, _ *gotgbot.User, _ string) string {
	var games []activeGame
	for _, s := range h.Registry.Active() {
		snap := s.Snapshot()
		if snap.State != session.InProgress {
			continue
		}
		board, err := s.CurrentScores(ctx)
		switch {
		case errors.Is(err, session.ErrNoActiveGame):
			continue
		case err != nil:
			log.Printf("listgames: scores of game %d: %v", snap.GameID, err)
			games = append(games, activeGame{Snapshot: snap})
		default:
			games = append(games, activeGame{Snapshot: snap, Board: &board})
		}
	}
	return renderActive(games)
}

func (h *Handler) ListPlayedGames(ctx context.Context, _ int64, _ *gotgbot.User, args string) string {
	offset := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			return "Usage: /listplayedgames [start position]"
		}
		offset = n
	}
	pageSize := h.Config.HistoryPageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	page, total, err := h.Records.PagedGameHistory(ctx, offset, pageSize)
	if err != nil {
		return h.fail("listplayedgames", err)
	}
	return renderHistory(page, total, offset, pageSize)
}

func (h *Handler) CreatePlayer(ctx context.Context, _ int64, _ *gotgbot.User, args string) string {
	mention, ok := parseMention(args)
	if !ok {
		return "Usage: /createplayer @user"
	}
	id, err := h.resolve(ctx, mention)
	if err != nil {
		return h.fail("createplayer", err)
	}
	if _, err := h.Records.FindPlayer(ctx, id.Name); err == nil {
		return fmt.Sprintf("%s is already registered.", id.Name)
	}
	if _, err := h.Records.GetOrCreatePlayer(ctx, id.Name); err != nil {
		return h.fail("createplayer", err)
	}
	return fmt.Sprintf("%s is registered now.", id.Name)
}

func (h *Handler) ListPlayers(ctx context.Context, _ int64, _ *gotgbot.User, _ string) string {
	players, err := h.Records.ListPlayers(ctx)
	if err != nil {
		return h.fail("listplayers", err)
	}
	return renderPlayers(players)
}

func (h *Handler) BackupDB(ctx context.Context, _ int64, sender *gotgbot.User, _ string) string {
	if sender == nil || !h.Config.IsAdmin(sender.Id) {
		return "Only admins can back up the database."
	}
	path, err := h.Records.Backup(ctx, h.Config.BackupDir)
	if err != nil {
		return h.fail("backupdb", err)
	}
	log.Printf("database backed up to %s by %d", path, sender.Id)
	return "Backup written to " + path
}

func (h *Handler) Help(context.Context, int64, *gotgbot.User, string) string {
	return helpText
}
