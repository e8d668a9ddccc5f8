package model

import "time"

type Document struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	SourceKey string    `json:"source_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
