package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkspaceSnapshot speichert den persistierten Workspace-Zustand als einen benannten JSON-Blob.
type WorkspaceSnapshot struct {
	Name      string         `json:"name" gorm:"primaryKey;size:128"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   uint64         `json:"version"`
	Data      datatypes.JSON `json:"data"`
}

// TableName gibt explizit den Tabellennamen an.
func (WorkspaceSnapshot) TableName() string {
	return "workspace_snapshots"
}
