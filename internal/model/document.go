// Package model holds the data types shared across the service.
package model

// Metadata is attached to every indexed document.
// Corpus documents fill Source, TaskID and CanonicalSolution; conversation
// memory documents fill Intent and Response.
type Metadata struct {
	Source            string `json:"source"`
	CanonicalSolution string `json:"canonical_solution"`
	TaskID            string `json:"task_id"`
	Intent            string `json:"intent,omitempty"`
	Response          string `json:"response,omitempty"`
}

// Document is a unit of retrievable content.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ScoredDocument is one retrieval hit. Score is cosine similarity, higher is closer.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}
