package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/aiexz/koy-kizi/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnknownUser = errors.New("user not seen in any chat yet")

// User is a Telegram account the bot has seen. Telegram does not resolve
// @username mentions for bots, so mentions are looked up here.
type User struct {
	UserID   int64  `gorm:"primary_key;autoIncrement:false"`
	Username string `gorm:"size:64;index"`
	Name     string `gorm:"size:128"`
}

func (User) TableName() string {
	return "telegram_users"
}

// Identity is the stable identity the session engine stores the user under.
func (u User) Identity() session.Identity {
	name := u.Username
	if name == "" {
		name = u.Name
	}
	return session.Identity{Key: u.UserID, Name: name}
}

type Directory struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Migrate() error {
	return d.db.AutoMigrate(&User{})
}

// Remember stores or refreshes a user.
func (d *Directory) Remember(ctx context.Context, u User) error {
	u.Username = strings.TrimPrefix(u.Username, "@")
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name"}),
	}).Create(&u).Error
}

// Lookup finds a user by username, ignoring case and a leading @.
func (d *Directory) Lookup(ctx context.Context, username string) (session.Identity, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return session.Identity{}, ErrUnknownUser
	}
	var u User
	err := d.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Identity{}, ErrUnknownUser
	}
	if err != nil {
		return session.Identity{}, err
	}
	return u.Identity(), nil
}
