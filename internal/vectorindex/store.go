// Package vectorindex wraps a per-user Qdrant collection, adapted from
// the teacher's internal/persistence/databases/qdrant_vector.go: the same
// deterministic-UUID-point-id pattern (Qdrant only accepts UUIDs or positive
// integers as point ids, so the original chunk id is kept in a payload
// field), the same collection existence-check-then-create bootstrap, and
// the same configurable distance metric.
package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"kollektiv/internal/config"
)

// payloadIDField stores the caller-supplied chunk id when it isn't itself a
// UUID, mirroring the teacher's PAYLOAD_ID_FIELD convention.
const payloadIDField = "_original_id"

// Point is a single vector-index record: a chunk embedding plus the text
// and metadata stored with it (§4.8). AddChunks embeds a chunk's Content
// field and stores its Text field here.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Result is one row of a similarity-search response (§4.8/§4.9).
type Result struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]string
}

// Store is a thin Qdrant client bound to one collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// CollectionName derives the deterministic per-user collection name
// required by spec.md's Data Model invariant 6.
func CollectionName(userID string) string {
	return "user_" + userID
}

// Open connects to Qdrant and ensures the named collection exists,
// creating it with the configured dimension/metric on first use.
func Open(ctx context.Context, cfg config.QdrantConfig, collection string, dimension int) (*Store, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be > 0")
	}
	qcfg := &qdrant.Config{Host: cfg.Host, Port: cfg.Port, UseTLS: cfg.UseTLS}
	if cfg.APIKey != "" {
		qcfg.APIKey = cfg.APIKey
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create qdrant client: %w", err)
	}
	s := &Store{
		client:     client,
		collection: collection,
		dimension:  dimension,
		metric:     strings.ToLower(strings.TrimSpace(cfg.Metric)),
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("vectorindex: ensure collection: %w", err)
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch s.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Exists reports which of the given chunk ids already have a point in the
// collection, used by the Add-only-missing-ids step of §4.8.
func (s *Store) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: check existing ids: %w", err)
	}
	for _, p := range points {
		id := originalID(p.Id, p.Payload)
		out[id] = true
	}
	return out, nil
}

// Upsert writes points in a single batch call.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]any{"content": p.Content}
		for k, v := range p.Metadata {
			payload[k] = v
		}
		uid := pointUUID(p.ID)
		if uid != p.ID {
			payload[payloadIDField] = p.ID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		batch = append(batch, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         batch,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}
	return nil
}

// Query runs a single similarity search for one embedded query vector.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(topK)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		id := originalID(hit.Id, hit.Payload)
		content, metadata := splitPayload(hit.Payload)
		out = append(out, Result{ID: id, Score: float64(hit.Score), Content: content, Metadata: metadata})
	}
	return out, nil
}

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Close() error { return s.client.Close() }

func originalID(id *qdrant.PointId, payload map[string]*qdrant.Value) string {
	if payload != nil {
		if v, ok := payload[payloadIDField]; ok {
			return v.GetStringValue()
		}
	}
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return id.String()
}

func splitPayload(payload map[string]*qdrant.Value) (content string, metadata map[string]string) {
	metadata = make(map[string]string, len(payload))
	for k, v := range payload {
		if k == payloadIDField {
			continue
		}
		if k == "content" {
			content = v.GetStringValue()
			continue
		}
		metadata[k] = v.GetStringValue()
	}
	return content, metadata
}
