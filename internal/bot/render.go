package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aiexz/koy-kizi/internal/game"
	"github.com/aiexz/koy-kizi/internal/session"
)

const (
	dateTimeLayout = "02.01.2006 15:04"
	timeLayout     = "15:04"
)

func renderScoreboard(board session.Scoreboard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scores after round %d (playing to %d):\n", board.Round, board.WinningScore)
	for _, st := range board.Standings {
		fmt.Fprintf(&sb, "%s: %d\n", st.Name, st.Score)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderStart(gameID uint, board session.Scoreboard) string {
	names := make([]string, 0, len(board.Standings))
	for _, st := range board.Standings {
		names = append(names, st.Name)
	}
	return fmt.Sprintf("New game started! Game ID: %d\nPlayers: %s\nFirst to %d points wins.",
		gameID, strings.Join(names, ", "), board.WinningScore)
}

func renderRound(res session.RoundResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d saved.\n", res.Number)
	for _, w := range res.Warnings {
		fmt.Fprintf(&sb, "Note: %s\n", w)
	}
	sb.WriteString(renderScoreboard(res.Scores))
	if res.GameEnded && res.Winner != nil {
		fmt.Fprintf(&sb, "\n\nGAME OVER! %s wins with %d points!", res.Winner.Name, res.Winner.Score)
	}
	return sb.String()
}

func renderEndEarly(board session.Scoreboard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Game %d ended early, no winner recorded.\nFinal scores:\n", board.GameID)
	for _, st := range board.Standings {
		fmt.Fprintf(&sb, "%s: %d\n", st.Name, st.Score)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// activeGame pairs a running session with its scores. Board is nil when the
// scores could not be read.
type activeGame struct {
	Snapshot session.Snapshot
	Board    *session.Scoreboard
}

func renderActive(games []activeGame) string {
	if len(games) == 0 {
		return "There are no active games right now."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Active games: %d\n", len(games))
	for _, g := range games {
		snap := g.Snapshot
		fmt.Fprintf(&sb, "\nChat %d, game %d, round %d, playing to %d\n", snap.Channel, snap.GameID, snap.Round, snap.WinningScore)
		if g.Board == nil {
			fmt.Fprintf(&sb, "  scores unavailable, players: %s\n", strings.Join(snap.Roster, ", "))
			continue
		}
		standings := append([]session.Standing(nil), g.Board.Standings...)
		sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })
		for _, st := range standings {
			fmt.Fprintf(&sb, "  %s: %d\n", st.Name, st.Score)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderStats(stats game.Statistics, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Statistics for %s\n", stats.Name)
	fmt.Fprintf(&sb, "Games played: %d\n", stats.GamesPlayed)
	fmt.Fprintf(&sb, "Games won: %d\n", stats.GamesWon)
	fmt.Fprintf(&sb, "Total points: %d\n", stats.TotalFinalScore)
	sb.WriteString("Play styles:\n")
	if len(stats.StyleFrequency) == 0 {
		sb.WriteString("  no rounds recorded\n")
	}
	styles := make([]string, 0, len(stats.StyleFrequency))
	for style := range stats.StyleFrequency {
		styles = append(styles, string(style))
	}
	sort.Strings(styles)
	for _, style := range styles {
		fmt.Fprintf(&sb, "  %s: %d times\n", style, stats.StyleFrequency[game.Style(style)])
	}
	fmt.Fprintf(&sb, "Total errors: %d\n", stats.TotalErrors)
	fmt.Fprintf(&sb, "Generated %s", now.Format(dateTimeLayout))
	return sb.String()
}

func renderDetails(d game.Details) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Game %d\n", d.ID)
	fmt.Fprintf(&sb, "Started: %s\n", d.StartTime.Format(dateTimeLayout))
	if d.EndTime != nil {
		fmt.Fprintf(&sb, "Ended: %s\n", d.EndTime.Format(dateTimeLayout))
	} else {
		sb.WriteString("Ended: still running\n")
	}
	location := d.Location
	if location == "" {
		location = "n/a"
	}
	fmt.Fprintf(&sb, "Location: %s\n", location)
	fmt.Fprintf(&sb, "Playing to: %d\n", d.WinningScore)
	switch {
	case d.Winner != "":
		fmt.Fprintf(&sb, "Winner: %s\n", d.Winner)
	case d.EndTime != nil:
		sb.WriteString("Winner: none\n")
	default:
		sb.WriteString("Winner: not decided yet\n")
	}
	sb.WriteString("\nScores:\n")
	for _, p := range d.Players {
		fmt.Fprintf(&sb, "%s: %d\n", p.Name, p.Score)
	}
	if len(d.Rounds) == 0 {
		sb.WriteString("\nNo rounds recorded.")
		return sb.String()
	}
	for _, r := range d.Rounds {
		fmt.Fprintf(&sb, "\nRound %d", r.Number)
		if r.Ender != "" {
			fmt.Fprintf(&sb, " (ended by %s)", r.Ender)
		}
		sb.WriteString("\n")
		for _, e := range r.Entries {
			fmt.Fprintf(&sb, "  %s: %d", e.Name, e.Score)
			if e.Style != "" && e.Style != game.StyleNormal {
				fmt.Fprintf(&sb, " (%s)", e.Style)
			}
			if e.Errors > 0 {
				fmt.Fprintf(&sb, ", %d errors", e.Errors)
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderHistory(page []game.Summary, total int64, offset, pageSize int) string {
	if len(page) == 0 {
		if offset == 0 {
			return "No games have been recorded yet."
		}
		return fmt.Sprintf("There are no games from position %d, only %d are recorded.", offset+1, total)
	}
	last := offset + len(page)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Games %d to %d of %d\n", offset+1, last, total)
	for _, g := range page {
		fmt.Fprintf(&sb, "\nGame %d, started %s", g.ID, g.StartTime.Format(dateTimeLayout))
		if g.EndTime != nil {
			fmt.Fprintf(&sb, ", ended %s\n", g.EndTime.Format(timeLayout))
		} else {
			sb.WriteString(", still running\n")
		}
		participants := "unknown"
		if len(g.Participants) > 0 {
			participants = strings.Join(g.Participants, ", ")
		}
		fmt.Fprintf(&sb, "Players: %s\n", participants)
		winner := "none"
		if g.Winner != "" {
			winner = g.Winner
		}
		fmt.Fprintf(&sb, "Winner: %s, playing to %d\n", winner, g.WinningScore)
	}
	pages := (int(total) + pageSize - 1) / pageSize
	fmt.Fprintf(&sb, "\nPage %d of %d", offset/pageSize+1, pages)
	if int64(last) < total {
		fmt.Fprintf(&sb, ", next page: /listplayedgames %d", last)
	}
	return sb.String()
}

func renderPlayers(players []game.Player) string {
	if len(players) == 0 {
		return "No players registered yet. Players are added when a game starts, or with /createplayer @user."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Registered players: %d\n", len(players))
	for i, p := range players {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.Name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderError turns an operation error into a reply, or "" when the error is
// unexpected and should only be logged.
func renderError(err error) string {
	var unknown *session.UnknownPlayerError
	var incomplete *session.IncompleteRoundError
	var unseen *unseenUserError
	var saved *session.RoundSavedError
	switch {
	case errors.As(err, &saved):
		return fmt.Sprintf("Round %d was saved, but the scores could not be read or the game could not be closed. "+
			"Do not send it again. Check the totals with /scores and use /fixround %d ... to re-check the round.", saved.Number, saved.Number)
	case errors.As(err, &unknown):
		return fmt.Sprintf("%s is not part of the active game in this chat.", unknown.Player.Name)
	case errors.As(err, &incomplete):
		return "Every player needs a score. Missing: " + strings.Join(incomplete.Missing, ", ")
	case errors.Is(err, session.ErrAlreadyInProgress):
		return "A game is already running in this chat. Finish it with /endgame first."
	case errors.Is(err, session.ErrEmptyRoster):
		return "Mention the players who take part, e.g. /startgame @anna @bob"
	case errors.Is(err, session.ErrNoActiveGame):
		return "There is no active game in this chat. Start one with /startgame."
	case errors.Is(err, session.ErrInvalidWinningScore), errors.Is(err, game.ErrInvalidWinningScore):
		return "The winning score must be a positive number."
	case errors.Is(err, session.ErrDuplicateEntry),
		errors.Is(err, session.ErrInvalidEntry),
		errors.Is(err, session.ErrInvalidRound):
		return "Cannot save the round: " + err.Error()
	case errors.As(err, &unseen):
		return fmt.Sprintf("I don't know @%s yet. They have to send a message where I can see it first.", unseen.Username)
	case errors.Is(err, game.ErrGameNotFound):
		return "No game with that ID was found."
	case errors.Is(err, game.ErrGameEnded):
		return "That game has already ended."
	case errors.Is(err, game.ErrPlayerNotFound):
		return "That player is not registered. Players are added by /startgame or /createplayer."
	case errors.Is(err, game.ErrStorage):
		return "Saving to the database failed, nothing was changed. Please try again."
	}
	return ""
}

const helpText = `Köy Kızı score keeper

/startgame @a @b [winning score] [location] - start a game in this chat (default 1000 points)
/round @a:10[:style][:errors] @b:-5 ... [-ender @a] - record the next round
   styles: normal, doubled (doppelt), unopened (ungeöffnet)
/fixround <n> @a:10 @b:5 ... [-ender @a] - overwrite round n
/scores - current scores
/endgame - end the game early, no winner
/stats [@user] - player statistics
/gamestats <id> - details of a game
/listgames - active games in all chats
/listplayedgames [start] - recorded games, newest first
/createplayer @user - register a player
/listplayers - registered players
/deletegame <id> - delete a game and all its rounds
/backupdb - copy the database (admins only)

Players are mentioned by @username. The bot has to have seen a message from a player before they can be mentioned.`
