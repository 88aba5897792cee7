package game

import (
	"context"

	"gorm.io/gorm"
)

// CurrentScores sums every recorded entry of the game per player. Players
// without entries are absent from the result.
func (s *Store) CurrentScores(ctx context.Context, gameID uint) (map[uint]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores, err := currentScores(s.conn(ctx), gameID)
	if err != nil {
		return nil, fail("current scores", err)
	}
	return scores, nil
}

func currentScores(tx *gorm.DB, gameID uint) (map[uint]int, error) {
	var rows []struct {
		PlayerID uint
		Total    int
	}
	err := tx.Model(&RoundEntry{}).
		Select("round_player_data.player_id AS player_id, SUM(round_player_data.score) AS total").
		Joins("JOIN rounds ON rounds.id = round_player_data.round_id").
		Where("rounds.game_id = ?", gameID).
		Group("round_player_data.player_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	scores := make(map[uint]int, len(rows))
	for _, row := range rows {
		scores[row.PlayerID] = row.Total
	}
	return scores, nil
}

// EndGame closes the game and snapshots every participant's final score.
// A nil winner records an early termination.
func (s *Store) EndGame(ctx context.Context, gameID uint, winner *uint) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := activeGame(tx, gameID); err != nil {
			return err
		}
		scores, err := currentScores(tx, gameID)
		if err != nil {
			return err
		}
		err = tx.Model(&Game{}).Where("id = ?", gameID).Updates(map[string]interface{}{
			"end_time":         s.now(),
			"winner_player_id": winner,
		}).Error
		if err != nil {
			return err
		}
		var participants []PlayerGame
		if err := tx.Where("game_id = ?", gameID).Find(&participants).Error; err != nil {
			return err
		}
		for _, p := range participants {
			won := winner != nil && *winner == p.PlayerID
			err := tx.Model(&PlayerGame{}).
				Where("game_id = ? AND player_id = ?", gameID, p.PlayerID).
				Updates(map[string]interface{}{"final_score": scores[p.PlayerID], "has_won": won}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	return fail("end game", err)
}
