// Package model defines database models
package model

import (
	"strconv"
	"time"
)

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Asset struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Generated when the bytes are written so two users uploading "robot.glb"
	// never collide. Never derived from the uploaded file name.
	StoredName string `gorm:"size:64;not null;uniqueIndex" json:"-"`
	// Original file name, only used as the suggested name on download
	OriginalName string `gorm:"size:255;not null" json:"originalName"`

	SizeBytes   int64       `gorm:"not null" json:"sizeBytes"`
	Extension   string      `gorm:"size:10;not null" json:"extension"`
	ContentType string      `gorm:"size:100" json:"contentType"`
	Tags        StringSlice `json:"tags"`

	OwnerID  string `gorm:"size:32;not null;index:idx_owner_created,priority:1" json:"ownerId"`
	IsPublic bool   `gorm:"not null;default:true;index" json:"isPublic"`

	DownloadCount int64 `gorm:"not null;default:0" json:"downloads"`

	StorageBackend string `gorm:"size:16;not null;default:local" json:"storageBackend"`
	// Object key for the remote backend, empty for local files
	ExternalRef string `gorm:"size:512" json:"-"`
	// Set by the integrity checker when the bytes couldn't be found
	Missing bool `gorm:"not null;default:false;index" json:"missing"`

	CreatedAt time.Time `gorm:"not null;index:idx_owner_created,priority:2;index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FormatSize returns a human readable size like "10.0 KB"
func (a *Asset) FormatSize() string {
	size := float64(a.SizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return strconv.FormatFloat(size, 'f', 1, 64) + " " + unit
		}
		size /= 1024
	}

	return strconv.FormatFloat(size, 'f', 1, 64) + " TB"
}
