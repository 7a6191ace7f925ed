package quotes

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/swiftfab/quote-engine/engine/holes"
	"github.com/swiftfab/quote-engine/engine/pricing"
	"github.com/swiftfab/quote-engine/pkg/repo"
)

// Store provides quote persistence on top of the generic Neo4j repository.
type Store struct {
	driver neo4j.DriverWithContext
	quotes *repo.Neo4jRepo[Quote, string]
}

// NewStore creates a quote store.
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		quotes: newQuoteRepo(driver),
	}
}

// SaveQuote writes the quote and its whole part/hole subtree in one
// transaction. Re-saving the same quote ID replaces its parts.
func (s *Store) SaveQuote(ctx context.Context, q Quote) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			`MERGE (q:Quote {id: $id}) SET q += $props
			 WITH q
			 OPTIONAL MATCH (q)-[:HAS_PART]->(p:Part)
			 DETACH DELETE p`,
			map[string]any{"id": q.ID, "props": quoteToMap(q)},
		); err != nil {
			return nil, err
		}
		for _, p := range q.Parts {
			if _, err := tx.Run(ctx,
				`MATCH (q:Quote {id: $qid})
				 CREATE (p:Part $props)
				 CREATE (q)-[:HAS_PART]->(p)`,
				map[string]any{"qid": q.ID, "props": partToMap(p)},
			); err != nil {
				return nil, err
			}
			for i, h := range p.Features.Holes {
				if _, err := tx.Run(ctx,
					`MATCH (p:Part {id: $pid})
					 CREATE (h:Hole $props)
					 CREATE (p)-[:HAS_HOLE]->(h)`,
					map[string]any{"pid": p.ID, "props": holeToMap(p.ID, i, h)},
				); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

// GetQuote loads a quote with its parts and hole inventories.
func (s *Store) GetQuote(ctx context.Context, id string) (Quote, error) {
	q, err := s.quotes.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	q.Parts, err = s.loadParts(ctx, id)
	return q, err
}

// ListQuotes returns a session's quotes, newest last, without parts.
func (s *Store) ListQuotes(ctx context.Context, sessionID string, offset, limit int) ([]Quote, error) {
	return s.quotes.List(ctx, repo.ListOpts{
		Offset: offset,
		Limit:  limit,
		Filter: map[string]any{"session_id": sessionID},
	})
}

// DeleteQuote removes a quote and its subtree.
func (s *Store) DeleteQuote(ctx context.Context, id string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (q:Quote {id: $id})
		 OPTIONAL MATCH (q)-[:HAS_PART]->(p:Part)
		 OPTIONAL MATCH (p)-[:HAS_HOLE]->(h:Hole)
		 DETACH DELETE q, p, h`,
		map[string]any{"id": id})
	return err
}

// UpdatePart replaces one part's configuration and price fields.
func (s *Store) UpdatePart(ctx context.Context, p Part) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (p:Part {id: $id}) SET p += $props RETURN p.id`,
		map[string]any{"id": p.ID, "props": partToMap(p)})
	if err != nil {
		return err
	}
	if !result.Next(ctx) {
		return fmt.Errorf("part %s not found", p.ID)
	}
	return nil
}

// GetPart loads one part with its holes.
func (s *Store) GetPart(ctx context.Context, id string) (Part, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (p:Part {id: $id}) RETURN p`, map[string]any{"id": id})
	if err != nil {
		return Part{}, err
	}
	if !result.Next(ctx) {
		return Part{}, fmt.Errorf("part %s not found", id)
	}
	node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "p")
	if err != nil {
		return Part{}, err
	}
	p := partFromProps(node.Props)
	p.Features.Holes, err = s.loadHoles(ctx, id)
	return p, err
}

// ExportTrainingRows turns every priced part in the store into a training
// row for the next coefficient fit.
func (s *Store) ExportTrainingRows(ctx context.Context) ([]pricing.Row, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (p:Part) WHERE p.unit_price IS NOT NULL
		 RETURN p ORDER BY p.id`, nil)
	if err != nil {
		return nil, err
	}

	var rows []pricing.Row
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "p")
		if err != nil {
			return nil, err
		}
		p := partFromProps(node.Props)
		if p.UnitPrice == nil {
			continue
		}
		rows = append(rows, pricing.Row{
			PartNumber:   p.ID,
			MaterialType: p.Config.MaterialType,
			Grade:        p.Config.Grade,
			Finish:       p.Config.Finish,
			ThicknessIn:  p.Config.ThicknessIn,
			MatUseSqIn:   p.Features.MaterialUseArea,
			SurfSqIn:     p.Features.SurfaceArea,
			NumCuts:      int(intProp(node.Props, "num_cuts")),
			Price:        *p.UnitPrice,
		})
	}
	return rows, nil
}

func (s *Store) loadParts(ctx context.Context, quoteID string) ([]Part, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (:Quote {id: $id})-[:HAS_PART]->(p:Part)
		 RETURN p ORDER BY p.id`, map[string]any{"id": quoteID})
	if err != nil {
		return nil, err
	}

	var parts []Part
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "p")
		if err != nil {
			return nil, err
		}
		p := partFromProps(node.Props)
		if p.Features.Holes, err = s.loadHoles(ctx, p.ID); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func (s *Store) loadHoles(ctx context.Context, partID string) ([]holes.Hole, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (:Part {id: $id})-[:HAS_HOLE]->(h:Hole)
		 RETURN h ORDER BY h.idx`, map[string]any{"id": partID})
	if err != nil {
		return nil, err
	}

	var hs []holes.Hole
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "h")
		if err != nil {
			return nil, err
		}
		hs = append(hs, holeFromProps(node.Props))
	}
	return hs, nil
}

func holeToMap(partID string, idx int, h holes.Hole) map[string]any {
	return map[string]any{
		"id":           fmt.Sprintf("%s/h%d", partID, idx),
		"idx":          int64(idx),
		"kind":         string(h.Kind),
		"shape":        string(h.Shape),
		"diameter_in":  h.Diameter,
		"width_in":     h.Width,
		"height_in":    h.Height,
		"perimeter_in": h.Perimeter,
		"depth_in":     h.Depth,
		"depth_known":  h.DepthKnown,
	}
}

func holeFromProps(props map[string]any) holes.Hole {
	h := holes.Hole{
		Kind:      holes.Kind(strProp(props, "kind")),
		Shape:     holes.Shape(strProp(props, "shape")),
		Diameter:  floatProp(props, "diameter_in"),
		Width:     floatProp(props, "width_in"),
		Height:    floatProp(props, "height_in"),
		Perimeter: floatProp(props, "perimeter_in"),
		Depth:     floatProp(props, "depth_in"),
	}
	if v, ok := props["depth_known"].(bool); ok {
		h.DepthKnown = v
	}
	return h
}
