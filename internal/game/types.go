package game

import (
	"strings"
	"time"
)

type Style string

const (
	StyleNormal   Style = "normal"
	StyleDoubled  Style = "doubled"
	StyleUnopened Style = "unopened"
)

// ParseStyle maps a submitted play style to its canonical value. The German
// names used at the table are accepted as aliases.
func ParseStyle(raw string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "normal":
		return StyleNormal, true
	case "doubled", "double", "doppelt":
		return StyleDoubled, true
	case "unopened", "ungeöffnet", "ungeoeffnet":
		return StyleUnopened, true
	default:
		return StyleNormal, false
	}
}

type Player struct {
	ID   uint   `gorm:"primary_key"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

type Game struct {
	ID             uint      `gorm:"primary_key"`
	StartTime      time.Time `gorm:"not null;index"`
	EndTime        *time.Time
	Location       *string `gorm:"size:128"`
	WinningScore   int     `gorm:"not null"`
	WinnerPlayerID *uint
	Winner         *Player      `gorm:"foreignKey:WinnerPlayerID"`
	Participants   []PlayerGame `gorm:"foreignKey:GameID;references:ID"`
	Rounds         []Round      `gorm:"foreignKey:GameID;references:ID"`
}

// InProgress reports whether the game has not been ended yet.
func (g Game) InProgress() bool {
	return g.EndTime == nil
}

type PlayerGame struct {
	PlayerID   uint `gorm:"primary_key;autoIncrement:false"`
	GameID     uint `gorm:"primary_key;autoIncrement:false;index"`
	FinalScore int  `gorm:"not null;default:0"`
	HasWon     bool `gorm:"not null;default:false"`
	Player     Player
}

type Round struct {
	ID                 uint `gorm:"primary_key"`
	GameID             uint `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	RoundNumber        int  `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	RoundEnderPlayerID *uint
	RoundEnder         *Player      `gorm:"foreignKey:RoundEnderPlayerID"`
	Entries            []RoundEntry `gorm:"foreignKey:RoundID;references:ID"`
}

type RoundEntry struct {
	RoundID  uint  `gorm:"primary_key;autoIncrement:false"`
	PlayerID uint  `gorm:"primary_key;autoIncrement:false;index"`
	Score    int   `gorm:"not null"`
	Style    Style `gorm:"size:16;not null"`
	Errors   int   `gorm:"not null;default:0"`
	Player   Player
}

func (RoundEntry) TableName() string {
	return "round_player_data"
}

// EntryInput is one player's line of a round as handed to AppendRound.
type EntryInput struct {
	PlayerID uint
	Score    int
	Style    Style
	Errors   int
}

type Statistics struct {
	PlayerID        uint
	Name            string
	GamesPlayed     int64
	GamesWon        int64
	TotalFinalScore int64
	StyleFrequency  map[Style]int64
	TotalErrors     int64
}

type PlayerScore struct {
	PlayerID uint
	Name     string
	Score    int
	Won      bool
}

type EntryDetail struct {
	PlayerID uint
	Name     string
	Score    int
	Style    Style
	Errors   int
}

type RoundDetail struct {
	Number  int
	Ender   string
	Entries []EntryDetail
}

// Details is a full snapshot of one game. Scores are final for ended games
// and live totals otherwise.
type Details struct {
	ID           uint
	StartTime    time.Time
	EndTime      *time.Time
	Location     string
	WinningScore int
	Winner       string
	Players      []PlayerScore
	Rounds       []RoundDetail
}

type Summary struct {
	ID           uint
	StartTime    time.Time
	EndTime      *time.Time
	Location     string
	WinningScore int
	Winner       string
	Participants []string
}
