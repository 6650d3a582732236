package models

import (
	"context"
	"strings"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	Username string `gorm:"primary_key;size:100" json:"username"`
	Password string `gorm:"size:100;not null" json:"-"`
	Name     string `gorm:"size:100" json:"name"`
	Role     UserRole `gorm:"type:enum('admin','operator','guest');default:guest" json:"role"`
	// Permissions is a comma-separated list of permission names; empty for
	// admins, who bypass permission checks anyway.
	Permissions string    `gorm:"size:255" json:"permissions"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) PermissionList() []string {
	if u.Permissions == "" {
		return nil
	}
	parts := strings.Split(u.Permissions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type NewUser struct {
	Username    string   `json:"username" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Login verifies the credentials and returns a signed token carrying the
// actor identity. A wrong username and a wrong password produce the same
// error.
func Login(ctx context.Context, db *gorm.DB, input *LoginInput) (string, error) {
	var user User
	if err := db.WithContext(ctx).Where("username = ?", input.Username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", utils.NewSecurityError("invalid username or password")
		}
		return "", err
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return "", utils.NewSecurityError("invalid username or password")
	}
	return utils.JwtGenerate(user.Username, user.Name, string(user.Role), user.PermissionList())
}

func CreateUser(ctx context.Context, db *gorm.DB, input *NewUser) (*User, error) {
	actor, err := requirePermission(ctx, PermissionUsers)
	if err != nil {
		return nil, err
	}
	role := UserRoleGuest
	if input.Role != "" {
		switch UserRole(input.Role) {
		case UserRoleAdmin, UserRoleOperator, UserRoleGuest:
			role = UserRole(input.Role)
		default:
			return nil, utils.NewValidationError("role", "invalid role")
		}
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username:    input.Username,
		Password:    string(hashed),
		Name:        input.Name,
		Role:        role,
		Permissions: strings.Join(input.Permissions, ","),
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		tx.Rollback()
		return nil, translateDuplicateKey(err, "username already in use")
	}
	if err := createHistory(tx.WithContext(ctx), actor, "Users", "New User", "User "+user.Username+" created."); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetAllUsers(ctx context.Context, db *gorm.DB) ([]*User, error) {
	var results []*User
	if err := db.WithContext(ctx).Order("username").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
