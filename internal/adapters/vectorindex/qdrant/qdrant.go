// Package qdrant implements the VectorIndex port against a Qdrant
// server, one collection per project (project_<id>), mirroring the
// per-project collection scheme the vector index this replaces used.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"

	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
	"github.com/story-engine/ragcore/internal/ports/vectorindex"
)

const originalIDField = "_original_id"

// Index is a Qdrant-backed VectorIndex. Qdrant requires point ids to be
// either an unsigned integer or a UUID; chunk ids are ours to choose, so
// any non-UUID id is mapped deterministically via uuid.NewSHA1 and the
// original id is stashed in the point payload for reverse lookup on
// Search.
type Index struct {
	client    *qdrant.Client
	dimension int
}

var _ vectorindex.VectorIndex = (*Index)(nil)

func New(host string, port int, dimension int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, ragerrors.NewBackendUnavailable("qdrant", err)
	}
	return &Index{client: client, dimension: dimension}, nil
}

func collectionName(projectID string) string {
	return "project_" + projectID
}

func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (idx *Index) ensureCollection(ctx context.Context, projectID string) error {
	name := collectionName(projectID)
	exists, err := idx.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	return idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(idx.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (idx *Index) Upsert(ctx context.Context, projectID string, ids []string, vectors [][]float32, metadata []map[string]string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := idx.ensureCollection(ctx, projectID); err != nil {
		return ragerrors.NewBackendUnavailable("qdrant", err)
	}

	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		payload := map[string]any{originalIDField: ids[i]}
		if i < len(metadata) {
			for k, v := range metadata[i] {
				payload[k] = v
			}
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(projectID),
		Points:         points,
	})
	if err != nil {
		return ragerrors.NewBackendUnavailable("qdrant", err)
	}
	return nil
}

func (idx *Index) Delete(ctx context.Context, projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(pointID(id))
	}

	_, err := idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(projectID),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return ragerrors.NewBackendUnavailable("qdrant", err)
	}
	return nil
}

func (idx *Index) Search(ctx context.Context, projectID string, query []float32, topK int, filter map[string]string) ([]vectorindex.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	req := &qdrant.QueryPoints{
		CollectionName: collectionName(projectID),
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conds = append(conds, qdrant.NewMatch(k, v))
		}
		req.Filter = &qdrant.Filter{Must: conds}
	}

	points, err := idx.client.Query(ctx, req)
	if err != nil {
		return nil, ragerrors.NewBackendUnavailable("qdrant", err)
	}

	hits := make([]vectorindex.Hit, 0, len(points))
	for _, p := range points {
		meta := map[string]string{}
		originalID := ""
		for k, v := range p.Payload {
			s := v.GetStringValue()
			if k == originalIDField {
				originalID = s
				continue
			}
			meta[k] = s
		}
		if originalID == "" {
			originalID = p.Id.GetUuid()
		}
		hits = append(hits, vectorindex.Hit{
			ChunkID:  originalID,
			Distance: 1 - float64(p.Score),
			Metadata: meta,
		})
	}
	return hits, nil
}

func (idx *Index) Dimension() int { return idx.dimension }

func (idx *Index) Close() error {
	return idx.client.Close()
}
