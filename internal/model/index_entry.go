package model

import "time"

// IndexEntry is one row of the index_entries table: a document bound to its embedding.
// Rows are append-only; ID order is insertion order.
type IndexEntry struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	Collection        string    `gorm:"type:varchar(32);not null;index"`
	DocID             string    `gorm:"type:varchar(64);not null;index"`
	Content           string    `gorm:"type:text"`
	Source            string    `gorm:"type:varchar(32);index"`
	TaskID            string    `gorm:"type:varchar(128)"`
	CanonicalSolution string    `gorm:"type:text"`
	Intent            string    `gorm:"type:varchar(16)"`
	Response          string    `gorm:"type:text"`
	Embedding         []float32 `gorm:"serializer:json;type:text"`
	ModelVersion      string    `gorm:"type:varchar(64)"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (IndexEntry) TableName() string {
	return "index_entries"
}

// Document rebuilds the Document the entry was created from.
func (e *IndexEntry) Document() Document {
	return Document{
		Content: e.Content,
		Metadata: Metadata{
			Source:            e.Source,
			TaskID:            e.TaskID,
			CanonicalSolution: e.CanonicalSolution,
			Intent:            e.Intent,
			Response:          e.Response,
		},
	}
}

// EsDocument is the Elasticsearch representation of an IndexEntry.
type EsDocument struct {
	DocID             string    `json:"doc_id"`
	Seq               int64     `json:"seq"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	TaskID            string    `json:"task_id"`
	CanonicalSolution string    `json:"canonical_solution"`
	Intent            string    `json:"intent,omitempty"`
	Response          string    `json:"response,omitempty"`
	Vector            []float32 `json:"vector"`
	ModelVersion      string    `json:"model_version"`
}
