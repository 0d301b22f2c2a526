package repository

import (
	"context"

	"gorm.io/gorm"

	"codehelp-go/internal/model"
)

// IndexEntryRepository reads and writes the index_entries rows of one collection.
type IndexEntryRepository interface {
	AutoMigrate() error
	BatchCreate(ctx context.Context, entries []*model.IndexEntry) error
	// FindAll returns every entry of the collection in insertion order.
	FindAll(ctx context.Context) ([]*model.IndexEntry, error)
	DeleteAll(ctx context.Context) error
}

type indexEntryRepository struct {
	db         *gorm.DB
	collection string
}

// NewIndexEntryRepository scopes all operations to collection ("knowledge", "memory", ...).
func NewIndexEntryRepository(db *gorm.DB, collection string) IndexEntryRepository {
	return &indexEntryRepository{db: db, collection: collection}
}

func (r *indexEntryRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&model.IndexEntry{})
}

// BatchCreate inserts entries 100 per statement, stamping the collection on each.
func (r *indexEntryRepository) BatchCreate(ctx context.Context, entries []*model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		e.Collection = r.collection
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

func (r *indexEntryRepository) FindAll(ctx context.Context) ([]*model.IndexEntry, error) {
	var entries []*model.IndexEntry
	err := r.db.WithContext(ctx).
		Where("collection = ?", r.collection).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *indexEntryRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("collection = ?", r.collection).Delete(&model.IndexEntry{}).Error
}
