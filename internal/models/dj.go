package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DJ struct {
	bun.BaseModel `bun:"table:djs"`

	ID            string    `bun:"id,pk" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	InstagramURL  string    `bun:"instagram_url,nullzero" json:"instagram_url,omitempty"`
	SoundcloudURL string    `bun:"soundcloud_url,nullzero" json:"soundcloud_url,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// EventDJ is one slot in an event's lineup. The (event_id, dj_id) pair is
// unique; SortOrder is the position in the lineup.
type EventDJ struct {
	bun.BaseModel `bun:"table:event_djs,alias:event_dj"`

	ID        string `bun:"id,pk" json:"id"`
	EventID   string `bun:"event_id,notnull,unique:event_djs_event_dj" json:"event_id"`
	DJID      string `bun:"dj_id,notnull,unique:event_djs_event_dj" json:"dj_id"`
	SlotStart string `bun:"slot_start,nullzero" json:"slot_start,omitempty"`
	SlotEnd   string `bun:"slot_end,nullzero" json:"slot_end,omitempty"`
	SortOrder int    `bun:"sort_order,notnull,default:0" json:"sort_order"`

	DJ *DJ `bun:"rel:belongs-to,join:dj_id=id" json:"dj,omitempty"`
}
