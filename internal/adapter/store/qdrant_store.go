package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"racha-core/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantStore is a SemanticCache. Hits must agree exactly on amount,
// participant count and scenario hint; only the wording may differ.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	threshold      float32
	ttl            time.Duration
	log            *zap.Logger
}

func NewQdrantStore(client *qdrant.Client, collectionName string, threshold float32, ttl time.Duration, log *zap.Logger) *QdrantStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &QdrantStore{
		client:         client,
		collectionName: collectionName,
		threshold:      threshold,
		ttl:            ttl,
		log:            log.Named("qdrant"),
	}
}

func (s *QdrantStore) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return err
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	indexes := map[string]qdrant.FieldType{
		"created_at":        qdrant.FieldType_FieldTypeInteger,
		"participant_count": qdrant.FieldType_FieldTypeInteger,
		"amount":            qdrant.FieldType_FieldTypeKeyword,
		"scenario_hint":     qdrant.FieldType_FieldTypeKeyword,
		"scenario":          qdrant.FieldType_FieldTypeKeyword,
		"method":            qdrant.FieldType_FieldTypeKeyword,
	}
	for field, typ := range indexes {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collectionName,
			FieldName:      field,
			FieldType:      typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			// usually the index already exists
			s.log.Warn("could not create payload index", zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, key entity.SemanticKey) (*entity.CacheEntry, float32, error) {
	freshAfter := time.Now().Add(-s.ttl).Unix()
	must := []*qdrant.Condition{
		qdrant.NewMatch("amount", key.Amount),
		qdrant.NewMatch("scenario_hint", hintValue(key.ScenarioHint)),
		qdrant.NewMatchInt("participant_count", int64(key.ParticipantCount)),
		qdrant.NewRange("created_at", &qdrant.Range{Gte: qdrant.PtrOf(float64(freshAfter))}),
	}
	// what the text settled must match what the stored answer says
	if key.Scenario != "" {
		must = append(must, qdrant.NewMatch("scenario", key.Scenario))
	}
	if key.Method != "" {
		must = append(must, qdrant.NewMatch("method", key.Method))
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: qdrant.PtrOf(s.threshold),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("qdrant query: %w", err)
	}
	if len(res) == 0 {
		return nil, 0, nil
	}

	hit := res[0]
	var entry entity.CacheEntry
	if err := json.Unmarshal([]byte(hit.Payload["entry"].GetStringValue()), &entry); err != nil {
		return nil, 0, fmt.Errorf("decode semantic entry: %w", err)
	}
	return &entry, hit.Score, nil
}

func (s *QdrantStore) Save(ctx context.Context, vector []float32, key entity.SemanticKey, entry *entity.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode semantic entry: %w", err)
	}
	payload := map[string]any{
		"text":              key.NormalizedText,
		"amount":            key.Amount,
		"participant_count": int64(key.ParticipantCount),
		"scenario_hint":     hintValue(key.ScenarioHint),
		"scenario":          hintValue(string(entry.Answer.Interpretation.Scenario)),
		"method":            hintValue(string(entry.Answer.Interpretation.Method)),
		"tier":              string(entry.Tier),
		"entry":             string(raw),
		"created_at":        entry.CreatedAt.Unix(),
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(entry.Fingerprint)).String()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	return err
}

func hintValue(hint string) string {
	if hint == "" {
		return "none"
	}
	return hint
}
