// Package qdrant implements the gRPC remote vector store backend against a
// Qdrant server, adapted from the teacher's retriever client: same dial
// options, with payloads and filters built inline in each method, re-purposed from
// query-only retrieval to the full vectorstore.Store contract (add, clear,
// remove-by-source, indexed-paths).
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/Cooksey99/nucleus/internal/vectorstore"
)

// Config holds Qdrant connection settings.
type Config struct {
	// Host is the Qdrant server host (required).
	Host string

	// Collection is the collection name this store namespaces records
	// under (required).
	Collection string

	// APIKey is sent as outgoing gRPC metadata when non-empty.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// GRPCPort defaults to 6334.
	GRPCPort int

	// Dimension is the fixed vector dimension for this collection.
	Dimension int
}

// Store is the gRPC-backed vectorstore.Store implementation.
type Store struct {
	cfg        Config
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection pb.CollectionsClient
}

// New dials the Qdrant server and ensures the configured collection exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("qdrant store: host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant store: collection is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant store: connect to %s: %w", addr, err)
	}

	s := &Store{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: pb.NewCollectionsClient(conn),
	}

	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	ctx = s.withAPIKey(ctx)
	_, err := s.collection.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.cfg.Collection})
	if err == nil {
		return nil
	}

	_, err = s.collection.Create(ctx, &pb.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.cfg.Dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant store: create collection: %w", err)
	}
	return nil
}

func (s *Store) withAPIKey(ctx context.Context) context.Context {
	if s.cfg.APIKey != "" {
		return metadata.AppendToOutgoingContext(ctx, "api-key", s.cfg.APIKey)
	}
	return ctx
}

// Add upserts doc by ID.
func (s *Store) Add(ctx context.Context, doc vectorstore.Document) error {
	if s.cfg.Dimension > 0 && len(doc.Vector) != s.cfg.Dimension {
		return vectorstore.ErrDimensionMismatch(len(doc.Vector), s.cfg.Dimension)
	}

	payload := map[string]*pb.Value{
		"content": {Kind: &pb.Value_StringValue{StringValue: doc.Content}},
		"source":  {Kind: &pb.Value_StringValue{StringValue: doc.Metadata["source"]}},
		"id":      {Kind: &pb.Value_StringValue{StringValue: doc.ID}},
	}

	_, err := s.points.Upsert(s.withAPIKey(ctx), &pb.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points: []*pb.PointStruct{
			{
				Id: pointID(doc.ID),
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: doc.Vector},
					},
				},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant store: add: %w", err)
	}
	return nil
}

// Search returns up to k results ordered by descending score.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	resp, err := s.points.Search(s.withAPIKey(ctx), &pb.SearchPoints{
		CollectionName: s.cfg.Collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: search: %w", err)
	}

	results := make([]vectorstore.SearchResult, 0, len(resp.Result))
	for _, point := range resp.Result {
		doc := vectorstore.Document{
			ID:       idOf(point.Id),
			Metadata: map[string]string{},
		}
		if point.Vectors != nil {
			if vec := point.Vectors.GetVector(); vec != nil {
				doc.Vector = vec.Data
			}
		}
		if point.Payload != nil {
			if v, ok := point.Payload["content"]; ok {
				doc.Content = v.GetStringValue()
			}
			if v, ok := point.Payload["source"]; ok {
				doc.Metadata["source"] = v.GetStringValue()
			}
		}
		results = append(results, vectorstore.SearchResult{
			Document: doc,
			Score:    point.Score,
		})
	}

	return vectorstore.SortResults(results, k), nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	resp, err := s.collection.Get(s.withAPIKey(ctx), &pb.GetCollectionInfoRequest{CollectionName: s.cfg.Collection})
	if err != nil {
		return 0, fmt.Errorf("qdrant store: count: %w", err)
	}
	return int(resp.GetResult().GetPointsCount()), nil
}

// Clear deletes every point in the collection via an empty-filter delete.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.points.Delete(s.withAPIKey(ctx), &pb.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant store: clear: %w", err)
	}
	return nil
}

// IndexedPaths scrolls the collection and collects the distinct source
// values. Qdrant has no native "distinct" primitive, so this is a best
// effort full scan suitable for the modest corpora the spec targets.
func (s *Store) IndexedPaths(ctx context.Context) ([]string, error) {
	resp, err := s.points.Scroll(s.withAPIKey(ctx), &pb.ScrollPoints{
		CollectionName: s.cfg.Collection,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		Limit: protoUint32(10000),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant store: indexed paths: %w", err)
	}

	seen := map[string]bool{}
	var paths []string
	for _, point := range resp.Result {
		if point.Payload == nil {
			continue
		}
		src := point.Payload["source"].GetStringValue()
		if src != "" && !seen[src] {
			seen[src] = true
			paths = append(paths, src)
		}
	}
	return paths, nil
}

// RemoveBySource deletes every point whose "source" payload field equals
// path, via a server-side filter match.
func (s *Store) RemoveBySource(ctx context.Context, path string) (int, error) {
	before, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}

	_, err = s.points.Delete(s.withAPIKey(ctx), &pb.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key:   "source",
									Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: path}},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant store: remove by source: %w", err)
	}

	after, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func idOf(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *pb.PointId_Uuid:
		return v.Uuid
	case *pb.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func protoUint32(n uint32) *uint32 {
	return &n
}
