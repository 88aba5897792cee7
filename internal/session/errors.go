package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyInProgress   = errors.New("a game is already in progress in this channel")
	ErrEmptyRoster         = errors.New("no players given")
	ErrNoActiveGame        = errors.New("no active game in this channel")
	ErrInvalidWinningScore = errors.New("winning score must be positive")
	ErrDuplicateEntry      = errors.New("player listed more than once")
	ErrInvalidEntry        = errors.New("invalid round entry")
	ErrInvalidRound        = errors.New("round has not been played yet")
)

// UnknownPlayerError is returned when a submission names someone outside the roster.
type UnknownPlayerError struct {
	Player Identity
}

func (e *UnknownPlayerError) Error() string {
	return fmt.Sprintf("%s is not part of the active game", e.Player.Name)
}

// IncompleteRoundError lists the roster members the submission left out.
type IncompleteRoundError struct {
	Missing []string
}

func (e *IncompleteRoundError) Error() string {
	return "missing data for: " + strings.Join(e.Missing, ", ")
}

// RoundSavedError means the round was stored but reading the totals back or
// closing the won game failed afterwards. Resubmitting would count it twice.
type RoundSavedError struct {
	Number int
	Err    error
}

func (e *RoundSavedError) Error() string {
	return fmt.Sprintf("round %d saved, but settling it failed: %v", e.Number, e.Err)
}

func (e *RoundSavedError) Unwrap() error {
	return e.Err
}
