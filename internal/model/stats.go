package model

type Stats struct {
	UserID         string `gorm:"primaryKey;size:32" json:"-"`
	UsedStorage    int64  `gorm:"not null;default:0" json:"usedStorage"`
	UploadedAssets int    `gorm:"not null;default:0" json:"uploadedAssets"`
	TotalDownloads int64  `gorm:"not null;default:0" json:"totalDownloads"`
}
