package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tablegate/tablegate/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// UserStore is the minimal account table sessions reference. Account
// management proper lives in another service; this store only supports
// authentication and the bootstrap account.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) ByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Save persists changes to an existing account, e.g. disabling it.
func (s *UserStore) Save(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

// Ensure creates the account if absent; used for the configured bootstrap
// user so a fresh deployment can authenticate.
func (s *UserStore) Ensure(ctx context.Context, username, passwordHash string) (*model.User, error) {
	user := model.User{Username: username, PasswordHash: passwordHash, Active: true}
	err := s.db.WithContext(ctx).
		Where(model.User{Username: username}).
		Attrs(model.User{PasswordHash: passwordHash, Active: true}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
