package vectordb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"corag/internal/domain/entities"
)

// scrollPageSize bounds how many points one maintenance scroll fetches.
const scrollPageSize = 10000

// QdrantConfig holds connection settings for the Qdrant gRPC client.
// Port is the gRPC port (6334), not the HTTP REST port.
type QdrantConfig struct {
	Host       string
	Port       int
	UseTLS     bool
	APIKey     string
	Collection string
	VectorSize uint64
}

// QdrantIndex stores chunk records as points in a single collection,
// isolating tenants by a tenant_id payload filter on every operation.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	pageSize   uint32
}

// NewQdrantIndex connects to Qdrant and ensures the collection exists with
// cosine distance, matching the retriever's similarity convention.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant vector size required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: cfg.Collection, pageSize: scrollPageSize}
	if err := idx.ensureCollection(ctx, cfg.VectorSize); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// Upsert writes records as points; point IDs are the record UUIDs, so a
// retried write replaces the prior point.
func (q *QdrantIndex) Upsert(ctx context.Context, records []entities.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: map[string]*qdrant.Value{
				"tenant_id":     {Kind: &qdrant.Value_StringValue{StringValue: rec.TenantID}},
				"document_name": {Kind: &qdrant.Value_StringValue{StringValue: rec.DocumentName}},
				"page":          {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(rec.Page)}},
				"chunk_index":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(rec.ChunkIndex)}},
				"content":       {Kind: &qdrant.Value_StringValue{StringValue: rec.Content}},
				"created_at":    {Kind: &qdrant.Value_IntegerValue{IntegerValue: rec.CreatedAt.Unix()}},
				"expires_at":    {Kind: &qdrant.Value_IntegerValue{IntegerValue: rec.ExpiresAt.Unix()}},
			},
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}
	return nil
}

// Query runs a similarity search constrained to the tenant's visible
// points; the score threshold is applied server-side.
func (q *QdrantIndex) Query(ctx context.Context, tenantID string, vector []float32, limit int, minScore float64, now time.Time) ([]entities.ScoredChunk, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         visibleFilter(tenantID, now),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]entities.ScoredChunk, 0, len(points))
	for _, p := range points {
		rec := recordFromPayload(p.GetId().GetUuid(), p.GetPayload())
		results = append(results, entities.ScoredChunk{Record: rec, Score: float64(p.GetScore())})
	}
	// Qdrant does not define ordering among equal scores; re-sort for the
	// deterministic (score desc, id asc) contract.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	return results, nil
}

// ListDocuments scrolls the tenant's visible points page by page and
// collects distinct document names.
func (q *QdrantIndex) ListDocuments(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	var offset *qdrant.PointId
	for {
		points, nextOffset, err := q.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         visibleFilter(tenantID, now),
			Offset:         offset,
			Limit:          qdrant.PtrOf(q.pageSize),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling points: %w", err)
		}
		for _, p := range points {
			if v, ok := p.GetPayload()["document_name"]; ok {
				seen[v.GetStringValue()] = struct{}{}
			}
		}
		if nextOffset == nil || len(points) == 0 {
			break
		}
		offset = nextOffset
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteDocument removes the tenant's points for one document name.
func (q *QdrantIndex) DeleteDocument(ctx context.Context, tenantID, documentName string) error {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		matchKeyword("tenant_id", tenantID),
		matchKeyword("document_name", documentName),
	}}
	return q.deleteByFilter(ctx, filter)
}

// DeleteTenant removes every point in the tenant's partition.
func (q *QdrantIndex) DeleteTenant(ctx context.Context, tenantID string) error {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{matchKeyword("tenant_id", tenantID)}}
	return q.deleteByFilter(ctx, filter)
}

// PurgeExpired counts then deletes points past their expiry, optionally
// scoped to one tenant. The filter targets only already-invisible points,
// so concurrent reads cannot be affected.
func (q *QdrantIndex) PurgeExpired(ctx context.Context, tenantID string, now time.Time) (int, error) {
	conditions := []*qdrant.Condition{expiredCondition(now)}
	if tenantID != "" {
		conditions = append(conditions, matchKeyword("tenant_id", tenantID))
	}
	filter := &qdrant.Filter{Must: conditions}

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting expired points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	if err := q.deleteByFilter(ctx, filter); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (q *QdrantIndex) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// visibleFilter scopes an operation to one tenant's unexpired points.
func visibleFilter(tenantID string, now time.Time) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{
		matchKeyword("tenant_id", tenantID),
		{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "expires_at",
					Range: &qdrant.Range{Gt: qdrant.PtrOf(float64(now.Unix()))},
				},
			},
		},
	}}
}

func expiredCondition(now time.Time) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   "expires_at",
				Range: &qdrant.Range{Lte: qdrant.PtrOf(float64(now.Unix()))},
			},
		},
	}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func recordFromPayload(id string, payload map[string]*qdrant.Value) entities.ChunkRecord {
	rec := entities.ChunkRecord{ID: id}
	if v, ok := payload["tenant_id"]; ok {
		rec.TenantID = v.GetStringValue()
	}
	if v, ok := payload["document_name"]; ok {
		rec.DocumentName = v.GetStringValue()
	}
	if v, ok := payload["page"]; ok {
		rec.Page = int(v.GetIntegerValue())
	}
	if v, ok := payload["chunk_index"]; ok {
		rec.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["content"]; ok {
		rec.Content = v.GetStringValue()
	}
	if v, ok := payload["created_at"]; ok {
		rec.CreatedAt = time.Unix(v.GetIntegerValue(), 0)
	}
	if v, ok := payload["expires_at"]; ok {
		rec.ExpiresAt = time.Unix(v.GetIntegerValue(), 0)
	}
	return rec
}
