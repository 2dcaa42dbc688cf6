package model

import "time"

type User struct {
	ID           string    `gorm:"primaryKey;size:32" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:100;not null" json:"fullName"`
	CreatedAt    time.Time `json:"createdAt"`

	Assets []Asset `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Stats  Stats   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"stats"`
}
