package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/aiexz/koy-kizi/internal/config"
	"github.com/aiexz/koy-kizi/internal/directory"
	"github.com/aiexz/koy-kizi/internal/game"
	"github.com/aiexz/koy-kizi/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chat = int64(-100200)

var admin = &gotgbot.User{Id: 1, Username: "anna", FirstName: "Anna"}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := game.Open(game.DSN(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, game.Migrate(conn))
	users := directory.New(conn)
	require.NoError(t, users.Migrate())

	ctx := context.Background()
	for _, u := range []directory.User{
		{UserID: 1, Username: "anna", Name: "Anna"},
		{UserID: 2, Username: "bob", Name: "Bob"},
		{UserID: 3, Username: "cem", Name: "Cem"},
	} {
		require.NoError(t, users.Remember(ctx, u))
	}

	store := game.NewStore(conn)
	cfg := config.Config{
		AdminIDs:        []int64{1},
		BackupDir:       filepath.Join(t.TempDir(), "backups"),
		HistoryPageSize: 2,
	}
	h := NewHandler(session.NewRegistry(store, session.Defaults{WinningScore: 100}), store, users, cfg)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC) }
	return h
}

func TestStartGameCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	reply := h.StartGame(ctx, chat, admin, "@anna @bob Garden")
	assert.Contains(t, reply, "New game started! Game ID: 1")
	assert.Contains(t, reply, "Players: anna, bob")
	assert.Contains(t, reply, "First to 100 points")

	reply = h.StartGame(ctx, chat, admin, "@cem")
	assert.Contains(t, reply, "already running")

	reply = h.StartGame(ctx, chat+1, admin, "@anna @zed")
	assert.Contains(t, reply, "I don't know @zed yet")
	_, ok := h.Registry.Lookup(chat + 1)
	assert.False(t, ok)

	assert.Contains(t, h.StartGame(ctx, chat+1, admin, "Garden"), "Mention the players")
	assert.Contains(t, h.StartGame(ctx, chat+1, admin, "@anna 0"), "winning score must be positive")
}

func TestRoundFlowEndsGame(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.StartGame(ctx, chat, admin, "@anna @bob")

	reply := h.Round(ctx, chat, admin, "@anna:40:weird @bob:10 -ender @bob")
	assert.Contains(t, reply, "Round 1 saved.")
	assert.Contains(t, reply, `unknown style "weird" for anna`)
	assert.Contains(t, reply, "anna: 40")
	assert.Contains(t, reply, "bob: 10")

	reply = h.Round(ctx, chat, admin, "@anna:10")
	assert.Contains(t, reply, "Missing: bob")

	reply = h.Round(ctx, chat, admin, "@anna:10 @cem:5")
	assert.Contains(t, reply, "cem is not part of the active game")

	reply = h.Round(ctx, chat, admin, "@anna:70 @bob:70 -ender @ghost")
	assert.Contains(t, reply, "round ender @ghost is unknown")
	assert.Contains(t, reply, "GAME OVER! anna wins with 110 points!")

	_, ok := h.Registry.Lookup(chat)
	assert.False(t, ok)
	assert.Contains(t, h.Scores(ctx, chat, admin, ""), "no active game")

	details := h.GameStats(ctx, chat, admin, "1")
	assert.Contains(t, details, "Winner: anna")
	assert.Contains(t, details, "Round 1 (ended by bob)")
	assert.Contains(t, details, "anna: 110")
}

// closeFailingStore stores rounds normally but cannot close a game.
type closeFailingStore struct {
	*game.Store
}

func (closeFailingStore) EndGame(context.Context, uint, *uint) error {
	return fmt.Errorf("end game: %w", game.ErrStorage)
}

func TestRoundSavedButGameNotClosed(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	store := h.Records.(*game.Store)
	h.Registry = session.NewRegistry(closeFailingStore{store}, session.Defaults{WinningScore: 100})
	h.StartGame(ctx, chat, admin, "@anna @bob")

	reply := h.Round(ctx, chat, admin, "@anna:150 @bob:10")
	assert.Contains(t, reply, "Round 1 was saved")
	assert.Contains(t, reply, "Do not send it again")
	assert.Contains(t, reply, "/fixround 1")
	assert.NotContains(t, reply, "nothing was changed")

	s, ok := h.Registry.Lookup(chat)
	require.True(t, ok)
	assert.Equal(t, 1, s.Round())
	board, err := s.CurrentScores(ctx)
	require.NoError(t, err)
	require.Len(t, board.Standings, 2)
	assert.Equal(t, []session.Standing{
		{PlayerID: board.Standings[0].PlayerID, Name: "anna", Score: 150},
		{PlayerID: board.Standings[1].PlayerID, Name: "bob", Score: 10},
	}, board.Standings)
}

func TestFixRoundCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.StartGame(ctx, chat, admin, "@anna @bob 500")
	h.Round(ctx, chat, admin, "@anna:40 @bob:10")

	reply := h.FixRound(ctx, chat, admin, "1 @anna:5 @bob:15")
	assert.Contains(t, reply, "Round 1 saved.")
	assert.Contains(t, reply, "anna: 5")
	assert.Contains(t, reply, "bob: 15")

	reply = h.FixRound(ctx, chat, admin, "2 @anna:5 @bob:15")
	assert.Contains(t, reply, "Cannot save the round")

	assert.Contains(t, h.Scores(ctx, chat, admin, ""), "Scores after round 1 (playing to 500)")
}

func TestEndGameCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	assert.Contains(t, h.EndGame(ctx, chat, admin, ""), "no active game")

	h.StartGame(ctx, chat, admin, "@anna @bob")
	h.Round(ctx, chat, admin, "@anna:30 @bob:45")
	reply := h.EndGame(ctx, chat, admin, "")
	assert.Contains(t, reply, "Game 1 ended early")
	assert.Contains(t, reply, "bob: 45")

	stats := h.Stats(ctx, chat, admin, "@bob")
	assert.Contains(t, stats, "Statistics for bob")
	assert.Contains(t, stats, "Games played: 1")
	assert.Contains(t, stats, "Games won: 0")
	assert.Contains(t, stats, "Total points: 45")
	assert.Contains(t, stats, "normal: 1 times")
	assert.Contains(t, stats, "Generated 01.05.2024 20:00")

	assert.Contains(t, h.Stats(ctx, chat, admin, ""), "Statistics for anna")
	assert.Contains(t, h.Stats(ctx, chat, admin, "@cem"), "cem has not played any game yet")
	assert.Contains(t, h.Stats(ctx, chat, admin, "bob"), "Usage")
}

func TestDeleteGameCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	h.StartGame(ctx, chat, admin, "@anna @bob")

	assert.Contains(t, h.DeleteGame(ctx, chat, admin, "x"), "Usage")
	assert.Contains(t, h.DeleteGame(ctx, chat, admin, "99"), "No game with that ID")
	assert.Contains(t, h.DeleteGame(ctx, chat, admin, "1"), "It was still running")
	_, ok := h.Registry.Lookup(chat)
	assert.False(t, ok)
	assert.Contains(t, h.GameStats(ctx, chat, admin, "1"), "No game with that ID")
}

func TestListGamesCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	assert.Equal(t, "There are no active games right now.", h.ListGames(ctx, chat, admin, ""))

	h.StartGame(ctx, chat, admin, "@anna @bob")
	h.StartGame(ctx, chat+5, admin, "@cem")
	h.Round(ctx, chat, admin, "@anna:10 @bob:20")

	reply := h.ListGames(ctx, chat, admin, "")
	assert.Contains(t, reply, "Active games: 2")
	assert.Contains(t, reply, fmt.Sprintf("Chat %d, game 1, round 1", chat))
	assert.Contains(t, reply, fmt.Sprintf("Chat %d, game 2, round 0", chat+5))
	assert.Less(t, strings.Index(reply, "bob: 20"), strings.Index(reply, "anna: 10"))
}

func TestListPlayedGamesCommand(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	assert.Equal(t, "No games have been recorded yet.", h.ListPlayedGames(ctx, chat, admin, ""))

	for i := 0; i < 3; i++ {
		h.StartGame(ctx, chat, admin, "@anna @bob")
		h.EndGame(ctx, chat, admin, "")
	}

	reply := h.ListPlayedGames(ctx, chat, admin, "")
	assert.Contains(t, reply, "Games 1 to 2 of 3")
	assert.Contains(t, reply, "Page 1 of 2, next page: /listplayedgames 2")
	assert.Contains(t, reply, "Players: anna, bob")

	reply = h.ListPlayedGames(ctx, chat, admin, "2")
	assert.Contains(t, reply, "Games 3 to 3 of 3")
	assert.NotContains(t, reply, "next page")

	assert.Contains(t, h.ListPlayedGames(ctx, chat, admin, "10"), "only 3 are recorded")
	assert.Contains(t, h.ListPlayedGames(ctx, chat, admin, "-1"), "Usage")
}

func TestPlayerCommands(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	assert.Contains(t, h.ListPlayers(ctx, chat, admin, ""), "No players registered yet")
	assert.Equal(t, "cem is registered now.", h.CreatePlayer(ctx, chat, admin, "@cem"))
	assert.Equal(t, "cem is already registered.", h.CreatePlayer(ctx, chat, admin, "@CEM"))
	assert.Contains(t, h.CreatePlayer(ctx, chat, admin, "cem"), "Usage")
	assert.Contains(t, h.CreatePlayer(ctx, chat, admin, "@nobody"), "I don't know @nobody")

	h.CreatePlayer(ctx, chat, admin, "@anna")
	assert.Equal(t, "Registered players: 2\n1. anna\n2. cem", h.ListPlayers(ctx, chat, admin, ""))
}

func TestBackupCommandRequiresAdmin(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	bob := &gotgbot.User{Id: 2, Username: "bob"}
	assert.Equal(t, "Only admins can back up the database.", h.BackupDB(ctx, chat, bob, ""))
	assert.Equal(t, "Only admins can back up the database.", h.BackupDB(ctx, chat, nil, ""))

	reply := h.BackupDB(ctx, chat, admin, "")
	assert.True(t, strings.HasPrefix(reply, "Backup written to "+h.Config.BackupDir), reply)
}

func TestHelp(t *testing.T) {
	h := newTestHandler(t)
	reply := h.Help(context.Background(), chat, admin, "")
	for _, cmd := range []string{"/startgame", "/round", "/fixround", "/scores", "/endgame", "/stats", "/gamestats",
		"/listgames", "/listplayedgames", "/createplayer", "/listplayers", "/deletegame", "/backupdb"} {
		assert.Contains(t, reply, cmd)
	}
}
