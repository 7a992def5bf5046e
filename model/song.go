package model

import "time"

// Song represents one track in the catalog. The audio payload itself lives in
// the blob store; the row only carries the blob identifiers.
type Song struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title         string    `json:"title" gorm:"size:200;not null"`
	Artist        string    `json:"artist" gorm:"size:100;not null"`
	Album         *string   `json:"album" gorm:"size:200"`
	Genre         string    `json:"genre" gorm:"size:32;not null;index"`
	Duration      int       `json:"duration" gorm:"not null;default:0"` // Seconds, never computed here
	AudioFileID   string    `json:"audioFileId" gorm:"size:36;not null;uniqueIndex"`
	AudioFilename string    `json:"audioFilename" gorm:"size:255;not null"`
	CoverFileID   *string   `json:"coverImageId" gorm:"size:36"`
	CoverFilename *string   `json:"coverImageFilename" gorm:"size:255"`
	UploadedBy    int64     `json:"uploadedBy" gorm:"not null;index"`
	IsDefault     bool      `json:"isDefault" gorm:"not null;default:false;index"` // Admin-uploaded, visible to all users
	Plays         int64     `json:"plays" gorm:"not null;default:0;index:idx_songs_plays,sort:desc"`
	CreatedAt     time.Time `json:"createdAt" gorm:"index:idx_songs_created_at,sort:desc"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// VisibleTo reports whether the song may be read by the given user.
// Default songs are readable by any authenticated user.
func (s *Song) VisibleTo(userID int64) bool {
	return s.IsDefault || s.UploadedBy == userID
}
