package quotes

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/swiftfab/quote-engine/engine/domain"
	"github.com/swiftfab/quote-engine/engine/feature"
	"github.com/swiftfab/quote-engine/pkg/repo"
)

// newQuoteRepo creates a Neo4j-backed repository for Quote nodes. Parts and
// holes live on separate nodes and are loaded by the store's own queries.
func newQuoteRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Quote, string] {
	return repo.NewNeo4jRepo[Quote, string](
		driver,
		"Quote",
		quoteToMap,
		quoteFromRecord,
	)
}

func quoteToMap(q Quote) map[string]any {
	return map[string]any{
		"id":         q.ID,
		"number":     q.Number,
		"session_id": q.SessionID,
		"file_name":  q.FileName,
		"created_at": q.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func quoteFromRecord(rec *neo4j.Record) (Quote, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Quote{}, err
	}
	return quoteFromProps(node.Props), nil
}

func quoteFromProps(props map[string]any) Quote {
	q := Quote{
		ID:        strProp(props, "id"),
		Number:    strProp(props, "number"),
		SessionID: strProp(props, "session_id"),
		FileName:  strProp(props, "file_name"),
	}
	if ts, err := time.Parse(time.RFC3339Nano, strProp(props, "created_at")); err == nil {
		q.CreatedAt = ts
	}
	return q
}

func partToMap(p Part) map[string]any {
	m := map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"material_type": p.Config.MaterialType,
		"grade":         p.Config.Grade,
		"finish":        p.Config.Finish,
		"thickness_in":  p.Config.ThicknessIn,
		"quantity":      int64(p.Config.Quantity),
		"length_in":     p.Features.BBox.Length,
		"width_in":      p.Features.BBox.Width,
		"height_in":     p.Features.BBox.Height,
		"volume_cuin":   p.Features.Volume,
		"surf_sqin":     p.Features.SurfaceArea,
		"mat_use_sqin":  p.Features.MaterialUseArea,
		"cut_length_in": p.Features.TotalCutLength,
		"num_cuts":      int64(p.Features.NumCuts()),
	}
	if p.UnitPrice != nil {
		m["unit_price"] = *p.UnitPrice
		m["price_r2"] = p.PriceR2
		m["priced_with"] = p.PricedWith
	}
	return m
}

func partFromProps(props map[string]any) Part {
	p := Part{
		ID:   strProp(props, "id"),
		Name: strProp(props, "name"),
		Config: domain.PartConfig{
			MaterialType: strProp(props, "material_type"),
			Grade:        strProp(props, "grade"),
			Finish:       strProp(props, "finish"),
			ThicknessIn:  floatProp(props, "thickness_in"),
			Quantity:     int(intProp(props, "quantity")),
		},
		Features: feature.Record{
			Name: strProp(props, "name"),
			BBox: feature.Dims{
				Length: floatProp(props, "length_in"),
				Width:  floatProp(props, "width_in"),
				Height: floatProp(props, "height_in"),
			},
			Volume:          floatProp(props, "volume_cuin"),
			SurfaceArea:     floatProp(props, "surf_sqin"),
			MaterialUseArea: floatProp(props, "mat_use_sqin"),
			TotalCutLength:  floatProp(props, "cut_length_in"),
		},
	}
	if v, ok := props["unit_price"]; ok {
		if f, ok := v.(float64); ok {
			p.UnitPrice = &f
			p.PriceR2 = floatProp(props, "price_r2")
			p.PricedWith = strProp(props, "priced_with")
		}
	}
	return p
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
