package users

import (
	"context"

	"github.com/khanghh/supagate/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	IdxUserUsername = "idx_users_username"
	IdxUserEmail    = "idx_users_email"
)

type UserRepository interface {
	FirstPreload(ctx context.Context, preload string, query any, args ...any) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Updates(ctx context.Context, userID uint, columns map[string]any) (int64, error)
	AddPermission(ctx context.Context, perm *model.UserPermission) error
	RemovePermission(ctx context.Context, userID uint, name string) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) FirstPreload(ctx context.Context, preload string, query any, args ...any) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Preload(preload).Where(query, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Updates(ctx context.Context, userID uint, columns map[string]any) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) AddPermission(ctx context.Context, perm *model.UserPermission) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(perm).Error
}

func (r *userRepository) RemovePermission(ctx context.Context, userID uint, name string) (int64, error) {
	ret := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).Delete(&model.UserPermission{})
	return ret.RowsAffected, ret.Error
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db}
}
