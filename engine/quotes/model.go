// Package quotes persists quotes, their parts and hole inventories in Neo4j
// as (Quote)-[:HAS_PART]->(Part)-[:HAS_HOLE]->(Hole) subtrees, and exports
// priced parts back out as training rows.
package quotes

import (
	"time"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/engine/feature"
)

// Quote is one uploaded file's worth of parts for one buyer session.
type Quote struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	SessionID string    `json:"session_id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	Parts     []Part    `json:"parts"`
}

// Part is one extracted solid on a quote with its configuration and, once
// priced, its unit price.
type Part struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Config   domain.PartConfig `json:"config"`
	Features feature.Record    `json:"features"`
	// UnitPrice is nil until the part has been priced against a
	// coefficient table.
	UnitPrice  *float64 `json:"unit_price,omitempty"`
	PriceR2    float64  `json:"price_r2,omitempty"`
	PricedWith string   `json:"priced_with,omitempty"`
}
