package user

import (
	"time"

	"account-api/internal/domain"
)

type UserModel struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)"`
	Email        string  `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string  `gorm:"size:100;not null"`
	FirstName    *string `gorm:"size:64"`
	LastName     *string `gorm:"size:64"`
	Role         string  `gorm:"size:16;not null;default:USER"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

func FromDomain(u *domain.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Role:         domain.Role(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
