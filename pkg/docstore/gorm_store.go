package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// defaultDocumentKey names the single row holding the registry.
const defaultDocumentKey = "registry"

// DocumentRow is the GORM model holding one serialized registry document.
type DocumentRow struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(64)"`
	Body      []byte    `gorm:"column:body;not null"`
	Revision  string    `gorm:"column:revision;type:varchar(64)"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (DocumentRow) TableName() string { return "registry_documents" }

// GormStore keeps the registry document in one row of a relational database.
// Each save is a single upsert, so the row is always a complete document.
type GormStore struct {
	db  *gorm.DB
	key string
	mu  sync.Mutex
}

// NewGormStore creates a GormStore. An empty key selects the default row.
func NewGormStore(db *gorm.DB, key string) *GormStore {
	if key == "" {
		key = defaultDocumentKey
	}
	return &GormStore{db: db, key: key}
}

// AutoMigrate creates or updates the registry_documents table.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DocumentRow{})
}

// Load reads and decodes the document row.
func (s *GormStore) Load(ctx context.Context) (*registry.Document, error) {
	data, err := s.Raw(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("document store: failed to parse row %s: %w", s.key, err)
	}
	return doc, nil
}

// Raw returns the stored bytes, or nothing if the row does not exist.
func (s *GormStore) Raw(ctx context.Context) ([]byte, error) {
	var row DocumentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", s.key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("document store: failed to read row %s: %w", s.key, err)
	}
	return row.Body, nil
}

// Save upserts the encoded document.
func (s *GormStore) Save(ctx context.Context, doc *registry.Document) error {
	data, err := registry.Encode(doc)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := DocumentRow{
		ID:        s.key,
		Body:      data,
		Revision:  doc.Revision,
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("document store: failed to write row %s: %w", s.key, err)
	}
	return nil
}

var _ Store = (*GormStore)(nil)
