// Package similar indexes part feature vectors in Qdrant and answers
// "what have we cut like this before" lookups, so a new upload can surface
// previously priced parts with comparable geometry.
package similar

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/swiftfab/quote-engine/engine/feature"
)

// pointsAPI is the slice of pb.PointsClient the store needs.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store needs.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("similar: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients wires pre-built clients, for tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection, if the store owns one.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the parts collection if it doesn't exist. Vector
// size is fixed by the feature embedding.
func (v *VectorStore) EnsureCollection(ctx context.Context) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("similar: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(feature.VectorDims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("similar: create collection %s: %w", v.collection, err)
	}
	return nil
}

// IndexPart stores one part's feature vector with enough payload to show a
// useful match without a second lookup.
func (v *VectorStore) IndexPart(ctx context.Context, partID, quoteID string, rec feature.Record) error {
	payload := map[string]*pb.Value{
		"part_id":       {Kind: &pb.Value_StringValue{StringValue: partID}},
		"quote_id":      {Kind: &pb.Value_StringValue{StringValue: quoteID}},
		"name":          {Kind: &pb.Value_StringValue{StringValue: rec.Name}},
		"length_in":     {Kind: &pb.Value_DoubleValue{DoubleValue: rec.BBox.Length}},
		"width_in":      {Kind: &pb.Value_DoubleValue{DoubleValue: rec.BBox.Width}},
		"thickness_in":  {Kind: &pb.Value_DoubleValue{DoubleValue: rec.BBox.Height}},
		"num_holes":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(len(rec.Holes))}},
		"cut_length_in": {Kind: &pb.Value_DoubleValue{DoubleValue: rec.TotalCutLength}},
	}

	// Qdrant point IDs must be a UUID or an unsigned integer; derive a
	// deterministic UUID so re-indexing the same part overwrites its point.
	pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(partID)).String()

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: feature.Vector(rec)},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("similar: upsert part %s: %w", partID, err)
	}
	return nil
}

// DeleteByQuote removes all indexed parts of a quote. Used when a quote is
// deleted or re-extracted.
func (v *VectorStore) DeleteByQuote(ctx context.Context, quoteID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("quote_id", quoteID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("similar: delete by quote %s: %w", quoteID, err)
	}
	return nil
}

// Match is one similar part hit.
type Match struct {
	PartID    string  `json:"part_id"`
	QuoteID   string  `json:"quote_id"`
	Name      string  `json:"name"`
	Score     float32 `json:"score"`
	Thickness float64 `json:"thickness_in"`
	NumHoles  int     `json:"num_holes"`
}

// Search returns the topK most similar indexed parts to the record.
func (v *VectorStore) Search(ctx context.Context, rec feature.Record, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         feature.Vector(rec),
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("similar: search: %w", err)
	}

	results := make([]Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = matchFromPoint(r)
	}
	return results, nil
}

func matchFromPoint(r *pb.ScoredPoint) Match {
	// The point ID is a UUID derived from the part ID; the real part ID
	// travels in the payload.
	m := Match{Score: r.GetScore()}
	for k, val := range r.GetPayload() {
		switch k {
		case "part_id":
			m.PartID = val.GetStringValue()
		case "quote_id":
			m.QuoteID = val.GetStringValue()
		case "name":
			m.Name = val.GetStringValue()
		case "thickness_in":
			m.Thickness = val.GetDoubleValue()
		case "num_holes":
			m.NumHoles = int(val.GetIntegerValue())
		}
	}
	return m
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
