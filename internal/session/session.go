package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/aiexz/koy-kizi/internal/game"
)

// Identity is an already resolved chat user. Key is only compared for
// equality, Name is the stable display name the player is stored under.
type Identity struct {
	Key  int64
	Name string
}

// Entry is one submitted line of a round. An empty Style means normal.
type Entry struct {
	Player Identity
	Score  int
	Style  string
	Errors int
}

// Store is the part of the storage engine a session drives.
type Store interface {
	GetOrCreatePlayer(ctx context.Context, name string) (uint, error)
	StartGame(ctx context.Context, playerIDs []uint, winningScore int, location string) (uint, error)
	AppendRound(ctx context.Context, gameID uint, roundNumber int, ender *uint, entries []game.EntryInput) (uint, error)
	CurrentScores(ctx context.Context, gameID uint) (map[uint]int, error)
	EndGame(ctx context.Context, gameID uint, winner *uint) error
	DeleteGame(ctx context.Context, gameID uint) error
}

type State int

const (
	Idle State = iota
	Starting
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case InProgress:
		return "in progress"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Standing struct {
	PlayerID uint
	Name     string
	Score    int
}

// Scoreboard is the score snapshot of a running game, in seat order.
type Scoreboard struct {
	Channel      int64
	GameID       uint
	Round        int
	WinningScore int
	Standings    []Standing
}

type RoundResult struct {
	Number    int
	Warnings  []string
	Scores    Scoreboard
	Winner    *Standing
	GameEnded bool
}

// Snapshot is a read-only view of a session that needs no storage access.
type Snapshot struct {
	Channel      int64
	State        State
	GameID       uint
	Round        int
	WinningScore int
	Roster       []string
}

type seat struct {
	playerID uint
	name     string
}

// Session coordinates one game in one channel. All methods are safe for
// concurrent use; mutations are serialised.
type Session struct {
	channel  int64
	registry *Registry
	store    Store

	mu           sync.Mutex
	state        State
	gameID       uint
	seats        []seat
	identities   map[int64]uint
	round        int
	winningScore int
}

func (s *Session) Channel() int64 {
	return s.channel
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) GameID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]string, 0, len(s.seats))
	for _, st := range s.seats {
		roster = append(roster, st.name)
	}
	return Snapshot{
		Channel:      s.channel,
		State:        s.state,
		GameID:       s.gameID,
		Round:        s.round,
		WinningScore: s.winningScore,
		Roster:       roster,
	}
}

// StartGame registers the roster and opens a new game. A zero winning score
// or an empty location falls back to the registry defaults.
func (s *Session) StartGame(ctx context.Context, players []Identity, winningScore int, location string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == InProgress || s.state == Starting {
		return 0, ErrAlreadyInProgress
	}
	if winningScore == 0 {
		winningScore = s.registry.defaults.WinningScore
	}
	if winningScore < 0 {
		return 0, ErrInvalidWinningScore
	}
	if location == "" {
		location = s.registry.defaults.Location
	}
	players = uniqueIdentities(players)
	if len(players) == 0 {
		return 0, ErrEmptyRoster
	}
	if err := s.registry.claim(s.channel, s); err != nil {
		return 0, err
	}
	previous := s.state
	s.state = Starting

	seats, identities, err := s.resolve(ctx, players)
	if err == nil {
		ids := make([]uint, 0, len(seats))
		for _, st := range seats {
			ids = append(ids, st.playerID)
		}
		var gameID uint
		if gameID, err = s.store.StartGame(ctx, ids, winningScore, location); err == nil {
			s.gameID = gameID
			s.seats = seats
			s.identities = identities
			s.round = 0
			s.winningScore = winningScore
			s.state = InProgress
			log.Printf("channel %d: game %d started with %d players, playing to %d", s.channel, gameID, len(seats), winningScore)
			return gameID, nil
		}
	}
	s.state = previous
	s.registry.release(s.channel, s)
	return 0, err
}

func (s *Session) resolve(ctx context.Context, players []Identity) ([]seat, map[int64]uint, error) {
	seats := make([]seat, 0, len(players))
	identities := make(map[int64]uint, len(players))
	seated := make(map[uint]bool, len(players))
	for _, p := range players {
		id, err := s.store.GetOrCreatePlayer(ctx, p.Name)
		if err != nil {
			return nil, nil, err
		}
		identities[p.Key] = id
		if seated[id] {
			continue
		}
		seated[id] = true
		seats = append(seats, seat{playerID: id, name: p.Name})
	}
	return seats, identities, nil
}

func uniqueIdentities(players []Identity) []Identity {
	seen := make(map[int64]bool, len(players))
	out := make([]Identity, 0, len(players))
	for _, p := range players {
		if seen[p.Key] {
			continue
		}
		seen[p.Key] = true
		out = append(out, p)
	}
	return out
}

// SubmitRound records the next round. The round counter only advances once
// the store has accepted the round; a winner ends the game.
func (s *Session) SubmitRound(ctx context.Context, entries []Entry, ender *Identity) (RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return RoundResult{}, ErrNoActiveGame
	}
	number := s.round + 1
	result, err := s.record(ctx, number, entries, ender)
	if err != nil {
		return RoundResult{}, err
	}
	s.round = number
	return s.settle(ctx, result)
}

// CorrectRound overwrites an already recorded round and re-evaluates the
// win condition. The round counter is not touched.
func (s *Session) CorrectRound(ctx context.Context, number int, entries []Entry, ender *Identity) (RoundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return RoundResult{}, ErrNoActiveGame
	}
	if number < 1 || number > s.round {
		return RoundResult{}, fmt.Errorf("%w: round %d (played so far: %d)", ErrInvalidRound, number, s.round)
	}
	result, err := s.record(ctx, number, entries, ender)
	if err != nil {
		return RoundResult{}, err
	}
	return s.settle(ctx, result)
}

func (s *Session) record(ctx context.Context, number int, entries []Entry, ender *Identity) (RoundResult, error) {
	inputs, warnings, err := s.validate(entries)
	if err != nil {
		return RoundResult{}, err
	}
	var enderID *uint
	if ender != nil {
		if id, ok := s.identities[ender.Key]; ok {
			enderID = &id
		} else {
			warnings = append(warnings, fmt.Sprintf("%s is not playing in this game, round saved without an ender", ender.Name))
		}
	}
	if _, err := s.store.AppendRound(ctx, s.gameID, number, enderID, inputs); err != nil {
		log.Printf("channel %d: round %d of game %d not saved: %v", s.channel, number, s.gameID, err)
		return RoundResult{}, err
	}
	return RoundResult{Number: number, Warnings: warnings}, nil
}

func (s *Session) validate(entries []Entry) ([]game.EntryInput, []string, error) {
	var warnings []string
	inputs := make([]game.EntryInput, 0, len(entries))
	submitted := make(map[uint]bool, len(entries))
	for _, e := range entries {
		id, ok := s.identities[e.Player.Key]
		if !ok {
			return nil, nil, &UnknownPlayerError{Player: e.Player}
		}
		if submitted[id] {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Player.Name)
		}
		if e.Errors < 0 {
			return nil, nil, fmt.Errorf("%w: %s has a negative error count", ErrInvalidEntry, e.Player.Name)
		}
		style, ok := game.ParseStyle(e.Style)
		if !ok {
			log.Printf("channel %d: unknown style %q for %s, using normal", s.channel, e.Style, e.Player.Name)
			warnings = append(warnings, fmt.Sprintf("unknown style %q for %s, using normal", e.Style, e.Player.Name))
		}
		submitted[id] = true
		inputs = append(inputs, game.EntryInput{PlayerID: id, Score: e.Score, Style: style, Errors: e.Errors})
	}
	var missing []string
	for _, st := range s.seats {
		if !submitted[st.playerID] {
			missing = append(missing, st.name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &IncompleteRoundError{Missing: missing}
	}
	return inputs, warnings, nil
}

// settle reads the totals back and ends the game if somebody reached the
// winning score. The highest total wins, equal totals go to the earlier seat.
func (s *Session) settle(ctx context.Context, result RoundResult) (RoundResult, error) {
	board, err := s.scoreboard(ctx)
	if err != nil {
		log.Printf("channel %d: scores of game %d not read after round %d: %v", s.channel, s.gameID, result.Number, err)
		return result, &RoundSavedError{Number: result.Number, Err: err}
	}
	result.Scores = board

	var winner *Standing
	for i, st := range board.Standings {
		if st.Score < s.winningScore {
			continue
		}
		if winner == nil || st.Score > winner.Score {
			winner = &board.Standings[i]
		}
	}
	if winner == nil {
		return result, nil
	}
	if err := s.store.EndGame(ctx, s.gameID, &winner.PlayerID); err != nil {
		log.Printf("channel %d: game %d not closed: %v", s.channel, s.gameID, err)
		return result, &RoundSavedError{Number: result.Number, Err: err}
	}
	log.Printf("channel %d: game %d won by %s with %d", s.channel, s.gameID, winner.Name, winner.Score)
	result.Winner = winner
	result.GameEnded = true
	s.finish()
	return result, nil
}

func (s *Session) scoreboard(ctx context.Context) (Scoreboard, error) {
	scores, err := s.store.CurrentScores(ctx, s.gameID)
	if err != nil {
		return Scoreboard{}, err
	}
	board := Scoreboard{
		Channel:      s.channel,
		GameID:       s.gameID,
		Round:        s.round,
		WinningScore: s.winningScore,
		Standings:    make([]Standing, 0, len(s.seats)),
	}
	for _, st := range s.seats {
		board.Standings = append(board.Standings, Standing{PlayerID: st.playerID, Name: st.name, Score: scores[st.playerID]})
	}
	return board, nil
}

// CurrentScores returns the live totals of the running game.
func (s *Session) CurrentScores(ctx context.Context) (Scoreboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return Scoreboard{}, ErrNoActiveGame
	}
	return s.scoreboard(ctx)
}

// EndEarly closes the game without a winner and returns the final totals.
func (s *Session) EndEarly(ctx context.Context) (Scoreboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return Scoreboard{}, ErrNoActiveGame
	}
	board, err := s.scoreboard(ctx)
	if err != nil {
		return Scoreboard{}, err
	}
	if err := s.store.EndGame(ctx, s.gameID, nil); err != nil {
		return Scoreboard{}, err
	}
	log.Printf("channel %d: game %d ended early after %d rounds", s.channel, s.gameID, s.round)
	s.finish()
	return board, nil
}

// DeleteActiveGameIfMatches drops the session when its game was deleted
// elsewhere, so the channel can start fresh.
func (s *Session) DeleteActiveGameIfMatches(gameID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress || s.gameID != gameID {
		return false
	}
	log.Printf("channel %d: active game %d was deleted", s.channel, gameID)
	s.finish()
	return true
}

func (s *Session) finish() {
	s.state = Ended
	s.gameID = 0
	s.seats = nil
	s.identities = nil
	s.round = 0
	s.registry.release(s.channel, s)
}
