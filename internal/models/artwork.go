package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ArtworkStatus string

const (
	ArtworkPending  ArtworkStatus = "pending"
	ArtworkApproved ArtworkStatus = "approved"
	ArtworkRejected ArtworkStatus = "rejected"
	ArtworkSold     ArtworkStatus = "sold"
)

// Artwork is owned by the catalog module; the order subsystem only reads
// price/ownership and flips the status to sold on completion.
type Artwork struct {
	bun.BaseModel `bun:"table:artworks"`

	ID            string        `bun:"id,pk" json:"id"`
	Title         string        `bun:"title,notnull" json:"title"`
	ArtistID      string        `bun:"artist_id,notnull" json:"artist_id"`
	Price         float64       `bun:"price,notnull" json:"price"`
	Status        ArtworkStatus `bun:"status,notnull" json:"status"`
	PayoutAccount string        `bun:"payout_account,nullzero" json:"payout_account,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
