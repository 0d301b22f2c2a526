package index

import (
	"fmt"
	"path/filepath"

	"codehelp-go/internal/config"
	"codehelp-go/internal/repository"
	"codehelp-go/pkg/database"
	"codehelp-go/pkg/embedding"
	"codehelp-go/pkg/es"
)

// Collections stored by the service.
const (
	CollectionKnowledge = "knowledge"
	CollectionMemory    = "memory"
)

// Backends accepted in index.backend.
const (
	BackendSQLite        = "sqlite"
	BackendMySQL         = "mysql"
	BackendElasticsearch = "elasticsearch"
)

const sqliteFile = "index.db"

// NewBackend creates the VectorIndex for cfg.Index.Backend. dir holds the
// marker file and, for SQLite, the database file.
func NewBackend(cfg config.Config, embedder embedding.Client, collection, dir string) (VectorIndex, error) {
	switch cfg.Index.Backend {
	case BackendElasticsearch:
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, err
		}
		name := cfg.Index.ESIndex
		if collection != CollectionKnowledge {
			name = name + "_" + collection
		}
		return NewESIndex(client, embedder, dir, name, collection), nil

	case BackendMySQL:
		db, err := database.OpenMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		return NewGormIndex(repository.NewIndexEntryRepository(db, collection), embedder, dir, collection, BackendMySQL), nil

	case BackendSQLite, "":
		db, err := database.OpenSQLite(filepath.Join(dir, sqliteFile))
		if err != nil {
			return nil, err
		}
		return NewGormIndex(repository.NewIndexEntryRepository(db, collection), embedder, dir, collection, BackendSQLite), nil

	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}
