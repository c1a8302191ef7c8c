package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"reportqa/internal/rag"
)

var _ rag.VectorCache = (*Store)(nil)

// LookupVectors returns cached passages for key in chunk order.
func (s *Store) LookupVectors(ctx context.Context, key rag.CacheKey) ([]rag.Passage, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page, text, vector FROM embedding_cache
		 WHERE document_sha256 = ? AND embedding_model = ? AND chunk_size = ? AND chunk_overlap = ?
		 ORDER BY chunk_index`,
		key.DocumentSHA256, key.EmbeddingModel, key.ChunkSize, key.ChunkOverlap)
	if err != nil {
		return nil, false, fmt.Errorf("lookup vectors: %w", err)
	}
	defer rows.Close()
	var passages []rag.Passage
	for rows.Next() {
		var (
			passage rag.Passage
			blob    []byte
		)
		if err := rows.Scan(&passage.Page, &passage.Text, &blob); err != nil {
			return nil, false, fmt.Errorf("scan vector: %w", err)
		}
		vector, err := decodeVector(blob)
		if err != nil {
			return nil, false, err
		}
		passage.Vector = vector
		passages = append(passages, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("lookup vectors: %w", err)
	}
	return passages, len(passages) > 0, nil
}

// StoreVectors replaces the cached passages for key.
func (s *Store) StoreVectors(ctx context.Context, key rag.CacheKey, passages []rag.Passage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store vectors: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embedding_cache
		 WHERE document_sha256 = ? AND embedding_model = ? AND chunk_size = ? AND chunk_overlap = ?`,
		key.DocumentSHA256, key.EmbeddingModel, key.ChunkSize, key.ChunkOverlap,
	); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	now := s.now().UTC()
	for i, passage := range passages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embedding_cache (
			  document_sha256, embedding_model, chunk_size, chunk_overlap, chunk_index, page, text, vector, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key.DocumentSHA256, key.EmbeddingModel, key.ChunkSize, key.ChunkOverlap, i,
			passage.Page, passage.Text, encodeVector(passage.Vector), now,
		); err != nil {
			return fmt.Errorf("insert vector %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vectors: %w", err)
	}
	return nil
}

// encodeVector packs float32 values little-endian.
func encodeVector(vector []float32) []byte {
	out := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out, nil
}
