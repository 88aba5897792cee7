package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the durable record of players, games, rounds and round entries.
// Every multi-statement write runs in one transaction.
type Store struct {
	// mu is held shared by every operation and exclusively by Backup.
	mu  sync.RWMutex
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// GetOrCreatePlayer returns the id of the player with exactly this name,
// creating the row on first reference.
func (s *Store) GetOrCreatePlayer(ctx context.Context, name string) (uint, error) {
	if strings.TrimSpace(name) == "" {
		return 0, ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var player Player
	err := s.conn(ctx).Where(Player{Name: name}).FirstOrCreate(&player).Error
	if err == nil {
		return player.ID, nil
	}
	// A concurrent insert may have won the unique index; the row is there now.
	var existing Player
	if rerr := s.conn(ctx).Where(Player{Name: name}).First(&existing).Error; rerr == nil {
		return existing.ID, nil
	}
	return 0, fail("get or create player", err)
}

func (s *Store) FindPlayer(ctx context.Context, name string) (Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var player Player
	err := s.conn(ctx).Where(Player{Name: name}).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Player{}, ErrPlayerNotFound
	}
	if err != nil {
		return Player{}, fail("find player", err)
	}
	return player, nil
}

func (s *Store) ListPlayers(ctx context.Context) ([]Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var players []Player
	if err := s.conn(ctx).Order("name").Find(&players).Error; err != nil {
		return nil, fail("list players", err)
	}
	return players, nil
}

// StartGame creates a game and a zero-score participation row per player.
func (s *Store) StartGame(ctx context.Context, playerIDs []uint, winningScore int, location string) (uint, error) {
	if len(playerIDs) == 0 {
		return 0, ErrNoPlayers
	}
	if winningScore <= 0 {
		return 0, ErrInvalidWinningScore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	game := Game{StartTime: s.now(), WinningScore: winningScore}
	if location = strings.TrimSpace(location); location != "" {
		game.Location = &location
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&game).Error; err != nil {
			return err
		}
		participants := make([]PlayerGame, 0, len(playerIDs))
		for _, id := range playerIDs {
			participants = append(participants, PlayerGame{PlayerID: id, GameID: game.ID})
		}
		return tx.Omit(clause.Associations).Create(&participants).Error
	})
	if err != nil {
		return 0, fail("start game", err)
	}
	return game.ID, nil
}

// AppendRound records a round. A round already stored under the same number
// is overwritten: its ender is replaced and its entries are deleted first.
func (s *Store) AppendRound(ctx context.Context, gameID uint, roundNumber int, ender *uint, entries []EntryInput) (uint, error) {
	if roundNumber <= 0 {
		return 0, ErrInvalidRoundNumber
	}
	rows := make([]RoundEntry, 0, len(entries))
	for _, e := range entries {
		if e.Errors < 0 {
			return 0, fmt.Errorf("%w: player %d has %d errors", ErrInvalidEntry, e.PlayerID, e.Errors)
		}
		style := e.Style
		if style == "" {
			style = StyleNormal
		}
		rows = append(rows, RoundEntry{PlayerID: e.PlayerID, Score: e.Score, Style: style, Errors: e.Errors})
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var round Round
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := activeGame(tx, gameID); err != nil {
			return err
		}
		err := tx.Where("game_id = ? AND round_number = ?", gameID, roundNumber).First(&round).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			round = Round{GameID: gameID, RoundNumber: roundNumber, RoundEnderPlayerID: ender}
			if err := tx.Omit(clause.Associations).Create(&round).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&Round{}).Where("id = ?", round.ID).Update("round_ender_player_id", ender).Error; err != nil {
				return err
			}
			if err := tx.Where("round_id = ?", round.ID).Delete(&RoundEntry{}).Error; err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].RoundID = round.ID
		}
		return tx.Omit(clause.Associations).Create(&rows).Error
	})
	if err != nil {
		return 0, fail("append round", err)
	}
	return round.ID, nil
}

// DeleteGame removes a game and everything recorded for it.
func (s *Store) DeleteGame(ctx context.Context, gameID uint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findGame(tx, gameID); err != nil {
			return err
		}
		rounds := tx.Model(&Round{}).Select("id").Where("game_id = ?", gameID)
		if err := tx.Where("round_id IN (?)", rounds).Delete(&RoundEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", gameID).Delete(&PlayerGame{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Game{}, gameID).Error
	})
	return fail("delete game", err)
}

func findGame(tx *gorm.DB, gameID uint) (Game, error) {
	var game Game
	err := tx.First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Game{}, ErrGameNotFound
	}
	return game, err
}

func activeGame(tx *gorm.DB, gameID uint) (Game, error) {
	game, err := findGame(tx, gameID)
	if err != nil {
		return Game{}, err
	}
	if !game.InProgress() {
		return Game{}, ErrGameEnded
	}
	return game, nil
}
