package game

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
)

const defaultPageSize = 10

// PlayerStatistics aggregates the persisted participation rows and round
// entries of one player. Final scores only move when a game is ended.
func (s *Store) PlayerStatistics(ctx context.Context, playerID uint) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := s.conn(ctx)
	var player Player
	err := tx.First(&player, playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Statistics{}, ErrPlayerNotFound
	}
	if err != nil {
		return Statistics{}, fail("player statistics", err)
	}

	var games struct {
		Played int64
		Won    int64
		Total  int64
	}
	err = tx.Model(&PlayerGame{}).
		Select("COUNT(*) AS played, COALESCE(SUM(CASE WHEN has_won THEN 1 ELSE 0 END), 0) AS won, COALESCE(SUM(final_score), 0) AS total").
		Where("player_id = ?", playerID).
		Scan(&games).Error
	if err != nil {
		return Statistics{}, fail("player statistics", err)
	}

	var styles []struct {
		Style  Style
		Count  int64
		Errors int64
	}
	err = tx.Model(&RoundEntry{}).
		Select("style, COUNT(*) AS count, COALESCE(SUM(errors), 0) AS errors").
		Where("player_id = ?", playerID).
		Group("style").
		Scan(&styles).Error
	if err != nil {
		return Statistics{}, fail("player statistics", err)
	}

	stats := Statistics{
		PlayerID:        player.ID,
		Name:            player.Name,
		GamesPlayed:     games.Played,
		GamesWon:        games.Won,
		TotalFinalScore: games.Total,
		StyleFrequency:  make(map[Style]int64, len(styles)),
	}
	for _, row := range styles {
		stats.StyleFrequency[row.Style] += row.Count
		stats.TotalErrors += row.Errors
	}
	return stats, nil
}

// GameDetails loads a game with its players, rounds and entries.
func (s *Store) GameDetails(ctx context.Context, gameID uint) (Details, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := s.conn(ctx)
	var game Game
	err := tx.
		Preload("Winner").
		Preload("Participants.Player").
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round_number") }).
		Preload("Rounds.RoundEnder").
		Preload("Rounds.Entries.Player").
		First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Details{}, ErrGameNotFound
	}
	if err != nil {
		return Details{}, fail("game details", err)
	}

	var live map[uint]int
	if game.InProgress() {
		if live, err = currentScores(tx, gameID); err != nil {
			return Details{}, fail("game details", err)
		}
	}

	details := Details{
		ID:           game.ID,
		StartTime:    game.StartTime,
		EndTime:      game.EndTime,
		Location:     deref(game.Location),
		WinningScore: game.WinningScore,
	}
	if game.Winner != nil {
		details.Winner = game.Winner.Name
	}
	for _, p := range game.Participants {
		score := p.FinalScore
		if live != nil {
			score = live[p.PlayerID]
		}
		details.Players = append(details.Players, PlayerScore{
			PlayerID: p.PlayerID,
			Name:     p.Player.Name,
			Score:    score,
			Won:      p.HasWon,
		})
	}
	sort.SliceStable(details.Players, func(i, j int) bool {
		if details.Players[i].Score != details.Players[j].Score {
			return details.Players[i].Score > details.Players[j].Score
		}
		return details.Players[i].Name < details.Players[j].Name
	})
	for _, r := range game.Rounds {
		round := RoundDetail{Number: r.RoundNumber}
		if r.RoundEnder != nil {
			round.Ender = r.RoundEnder.Name
		}
		for _, e := range r.Entries {
			round.Entries = append(round.Entries, EntryDetail{
				PlayerID: e.PlayerID,
				Name:     e.Player.Name,
				Score:    e.Score,
				Style:    e.Style,
				Errors:   e.Errors,
			})
		}
		sort.Slice(round.Entries, func(i, j int) bool { return round.Entries[i].Name < round.Entries[j].Name })
		details.Rounds = append(details.Rounds, round)
	}
	return details, nil
}

// PagedGameHistory lists games newest first together with the total count.
func (s *Store) PagedGameHistory(ctx context.Context, offset, limit int) ([]Summary, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := s.conn(ctx)
	var total int64
	if err := tx.Model(&Game{}).Count(&total).Error; err != nil {
		return nil, 0, fail("game history", err)
	}
	var games []Game
	err := tx.
		Preload("Winner").
		Preload("Participants.Player").
		Order("start_time DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, 0, fail("game history", err)
	}

	page := make([]Summary, 0, len(games))
	for _, g := range games {
		summary := Summary{
			ID:           g.ID,
			StartTime:    g.StartTime,
			EndTime:      g.EndTime,
			Location:     deref(g.Location),
			WinningScore: g.WinningScore,
		}
		if g.Winner != nil {
			summary.Winner = g.Winner.Name
		}
		for _, p := range g.Participants {
			summary.Participants = append(summary.Participants, p.Player.Name)
		}
		sort.Strings(summary.Participants)
		page = append(page, summary)
	}
	return page, total, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
