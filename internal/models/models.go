package models

import (
	"time"
)

const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:employee" json:"role"`
	IsAdmin      bool   `gorm:"default:false"            json:"is_admin"`
}

type Book struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"not null"                 json:"title"`
	Author      string `json:"author"`
	ISBN        string `gorm:"uniqueIndex"              json:"isbn"`
	CoverURL    string `json:"cover_url"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Available   bool   `gorm:"default:true"             json:"available"`
}

type BorrowRecord struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint       `gorm:"index;not null"           json:"user_id"`
	BookID     uint       `gorm:"index;not null"           json:"book_id"`
	BorrowDate time.Time  `gorm:"not null"                 json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
	DueDate    time.Time  `gorm:"not null"                 json:"due_date"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null"     json:"jti"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"                 json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `gorm:"default:false"            json:"revoked"`
}

type BlocklistEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null"     json:"jti"`
	CreatedAt time.Time `json:"created_at"`
}

// PublicUser is the profile shape returned to clients, password hash excluded.
type PublicUser struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"is_admin"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID,
		Email:   u.Email,
		Role:    u.Role,
		IsAdmin: u.IsAdmin,
	}
}
