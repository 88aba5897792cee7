package game

import (
	"errors"
	"fmt"
)

// domainError marks argument and state errors that are reported as-is,
// never wrapped into a storage failure.
type domainError string

func (e domainError) Error() string {
	return string(e)
}

var (
	ErrInvalidName         error = domainError("player name must not be empty")
	ErrPlayerNotFound      error = domainError("player not found")
	ErrNoPlayers           error = domainError("a game needs at least one player")
	ErrInvalidWinningScore error = domainError("winning score must be positive")
	ErrInvalidRoundNumber  error = domainError("round number must be positive")
	ErrInvalidEntry        error = domainError("invalid round entry")
	ErrGameNotFound        error = domainError("game not found")
	ErrGameEnded           error = domainError("game has already ended")
)

// ErrStorage is matched by every failure coming from the database itself.
var ErrStorage = errors.New("storage failure")

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var de domainError
	if errors.As(err, &de) {
		return err
	}
	return &storageError{op: op, err: err}
}
