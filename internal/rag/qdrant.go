package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/logging"
)

// qdrantUpsertBatch caps the number of points sent in one Upsert call.
const qdrantUpsertBatch = 256

// Payload keys written with every point.
const (
	payloadText    = "text"
	payloadChunkID = "chunk_id"
	payloadLabel   = "label"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// VectorSize is the embedding dimension. Used for collections built from
	// an empty chunk set; otherwise the chunks' own length is checked against it.
	VectorSize int

	// Distance is the similarity metric of every collection this index creates.
	Distance Distance

	// Label tags every stored point as belonging to this application.
	Label string
}

// QdrantIndex implements Index on top of Qdrant collection aliases. The index
// name is an alias; every Build writes a fresh staging collection and then
// repoints the alias in one UpdateAliases call, so searches see either the
// old or the new collection.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg QdrantConfig

	// locks serializes builds per name.
	locks keyedMutex
}

// NewQdrantIndex connects to Qdrant and returns a ready-to-use index.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Distance == "" {
		cfg.Distance = DistanceCosine
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Client exposes the underlying client for readiness probes.
func (q *QdrantIndex) Client() *qdrant.Client { return q.client }

// Build implements Index.
func (q *QdrantIndex) Build(ctx context.Context, name string, chunks []Chunk) error {
	const op = "qdrant: build"
	if name == "" {
		return apperr.New(apperr.KindIndexBuild, op, "index name must not be empty")
	}
	dim, err := ValidateChunks(op, chunks, q.cfg.VectorSize)
	if err != nil {
		return err
	}
	if dim == 0 {
		return apperr.New(apperr.KindIndexBuild, op, "cannot create an empty collection without a configured vector size")
	}

	unlock := q.locks.lock(name)
	defer unlock()

	logger := logging.FromContext(ctx)
	staging := name + "-" + uuid.NewString()

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: staging,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: q.qdrantDistance(),
		}),
	})
	if err != nil {
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("create staging collection %q: %w", staging, err))
	}

	if err := q.fill(ctx, staging, chunks); err != nil {
		q.dropCollection(ctx, staging)
		return apperr.Wrap(apperr.KindIndexBuild, op, err)
	}

	previous, err := q.aliasTarget(ctx, name)
	if err != nil {
		q.dropCollection(ctx, staging)
		return apperr.Wrap(apperr.KindIndexBuild, op, err)
	}

	actions := []*qdrant.AliasOperations{qdrant.NewAliasCreate(name, staging)}
	if previous != "" {
		actions = append([]*qdrant.AliasOperations{qdrant.NewAliasDelete(name)}, actions...)
	}
	if err := q.client.UpdateAliases(ctx, actions); err != nil {
		q.dropCollection(ctx, staging)
		return apperr.Wrap(apperr.KindIndexBuild, op, fmt.Errorf("switch alias %q: %w", name, err))
	}

	logger.Debug("qdrant: index switched",
		slog.String("index", name),
		slog.String("collection", staging),
		slog.String("previous", previous),
		slog.Int("chunks", len(chunks)),
	)
	if previous != "" {
		q.dropCollection(ctx, previous)
	}
	return nil
}

// fill upserts chunks into collection in batches and waits for each batch
// to be applied.
func (q *QdrantIndex) fill(ctx context.Context, collection string, chunks []Chunk) error {
	wait := true
	for start := 0; start < len(chunks); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(c.ID)),
				Vectors: qdrant.NewVectors(c.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadText:    c.Text,
					payloadChunkID: int64(c.ID),
					payloadLabel:   q.cfg.Label,
				}),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upsert into %q: %w", collection, err)
		}
	}
	return nil
}

// aliasTarget returns the collection the alias currently points to, or ""
// when the alias does not exist.
func (q *QdrantIndex) aliasTarget(ctx context.Context, alias string) (string, error) {
	aliases, err := q.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// dropCollection deletes a collection, logging rather than returning
// failures. It runs even when ctx has been cancelled.
func (q *QdrantIndex) dropCollection(ctx context.Context, collection string) {
	if err := q.client.DeleteCollection(context.WithoutCancel(ctx), collection); err != nil {
		logging.FromContext(ctx).Warn("qdrant: failed to delete collection",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
	}
}

// Search implements Index.
func (q *QdrantIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]Match, error) {
	const op = "qdrant: search"
	if err := ValidateQuery(op, vector, q.cfg.VectorSize); err != nil {
		return nil, err
	}
	if k <= 0 {
		target, err := q.aliasTarget(ctx, name)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
		if target == "" {
			return nil, apperr.New(apperr.KindIndexNotFound, op, "index %q does not exist", name)
		}
		return []Match{}, nil
	}

	// Qdrant breaks score ties by its own order; fetch past k and re-rank.
	limit := uint64(overFetch(k))
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, apperr.New(apperr.KindIndexNotFound, op, "index %q does not exist", name)
		}
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		score := r.GetScore()
		if q.cfg.Distance == DistanceL2 {
			// Qdrant reports Euclid as a distance; scores here grow with similarity.
			score = -score
		}
		m := Match{Chunk: Chunk{ID: int(r.GetId().GetNum())}, Score: score}
		if v, ok := r.GetPayload()[payloadText]; ok {
			m.Chunk.Text = v.GetStringValue()
		}
		matches = append(matches, m)
	}
	return TopK(matches, k), nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) qdrantDistance() qdrant.Distance {
	if q.cfg.Distance == DistanceL2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}
