package domain

// Chunk is a bounded slice of extracted text plus its provenance.
// Once stored, a chunk (and in particular its SessionID) is never mutated.
type Chunk struct {
	ID        string
	Text      string
	Source    string
	SessionID SessionID
	Metadata  map[string]any
}

// VectorRecord is what a VectorIndex persists for one chunk.
type VectorRecord struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// VectorMatch is one nearest-neighbor hit returned by a VectorIndex.
type VectorMatch struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// RecordFromChunk flattens a chunk into the metadata layout stored in the index.
func RecordFromChunk(c Chunk, embedding []float32) VectorRecord {
	meta := make(map[string]any, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[MetaSource] = c.Source
	meta[MetaSessionID] = string(c.SessionID)

	return VectorRecord{
		ID:        c.ID,
		Text:      c.Text,
		Embedding: embedding,
		Metadata:  meta,
	}
}

// ChunkFromMatch rebuilds a chunk from a search hit.
func ChunkFromMatch(m VectorMatch) Chunk {
	meta := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}

	source, _ := meta[MetaSource].(string)
	session, _ := meta[MetaSessionID].(string)
	delete(meta, MetaSource)
	delete(meta, MetaSessionID)

	return Chunk{
		ID:        m.ID,
		Text:      m.Text,
		Source:    source,
		SessionID: SessionID(session),
		Metadata:  meta,
	}
}
