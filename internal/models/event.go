package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event lifecycle statuses.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusArchived  = "archived"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID           string     `bun:"id,pk" json:"id"`
	Title        string     `bun:"title,notnull" json:"title"`
	Description  string     `bun:"description,nullzero" json:"description,omitempty"`
	Date         time.Time  `bun:"date,notnull" json:"date"`
	TimeEnd      *time.Time `bun:"time_end,nullzero" json:"time_end,omitempty"`
	Timezone     string     `bun:"timezone,notnull" json:"timezone"`
	VenueName    string     `bun:"venue_name,notnull" json:"venue_name"`
	VenueCity    string     `bun:"venue_city,notnull" json:"venue_city"`
	VenueLink    string     `bun:"venue_link,nullzero" json:"venue_link,omitempty"`
	ImageURL     string     `bun:"image_url,nullzero" json:"image_url,omitempty"`
	Status       string     `bun:"status,notnull" json:"status"`
	DoorOnlyMode bool       `bun:"door_only_mode" json:"door_only_mode"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}
