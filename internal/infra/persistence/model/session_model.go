package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. Guest rows have a NULL account_id.
type SessionModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TokenHash string     `gorm:"type:char(64);not null;uniqueIndex:idx_sessions_token_hash"`
	AccountID *uuid.UUID `gorm:"type:uuid;index:idx_sessions_account_id"`
	Role      string     `gorm:"type:varchar(16)"`
	CSRFToken string     `gorm:"column:csrf_token;type:varchar(64);not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index:idx_sessions_expires_at"`

	Account *AccountModel `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
