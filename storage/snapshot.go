package storage

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orbit/models"
)

// SnapshotRepository speichert den Workspace als eine benannte Zeile.
type SnapshotRepository struct {
	db   *gorm.DB
	name string
}

func NewSnapshotRepository(db *gorm.DB, name string) *SnapshotRepository {
	return &SnapshotRepository{db: db, name: name}
}

// Load gibt die gespeicherten Daten zurück oder nil, wenn es noch keinen Snapshot gibt.
func (r *SnapshotRepository) Load(ctx context.Context) ([]byte, error) {
	snap, err := r.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

// Get liest die komplette Snapshot-Zeile.
func (r *SnapshotRepository) Get(ctx context.Context) (*models.WorkspaceSnapshot, error) {
	var snap models.WorkspaceSnapshot
	if err := r.db.WithContext(ctx).Where("name = ?", r.name).First(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save schreibt den Snapshot per Upsert.
func (r *SnapshotRepository) Save(ctx context.Context, data []byte, version uint64) error {
	snap := models.WorkspaceSnapshot{
		Name:    r.name,
		Version: version,
		Data:    datatypes.JSON(data),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "data", "updated_at"}),
	}).Create(&snap).Error
}
