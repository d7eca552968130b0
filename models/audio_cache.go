package models

import "time"

// AudioCache is one synthesized clip, keyed by the fingerprint of its
// normalized text and language. Rows are never updated by this service.
type AudioCache struct {
	TextHash   string    `gorm:"primaryKey;size:64" json:"text_hash"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	FilePath   string    `gorm:"type:text;not null" json:"file_path"`
	Language   string    `gorm:"size:8;not null;index" json:"language"`
	Provider   string    `gorm:"size:32" json:"provider"`
	SizeBytes  int       `json:"size_bytes"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AudioCache) TableName() string {
	return "audio_cache"
}

// MaxCachedTextLen bounds the text copy kept on the row.
const MaxCachedTextLen = 500
