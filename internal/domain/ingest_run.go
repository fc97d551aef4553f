package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	IngestRunRunning   = "running"
	IngestRunSucceeded = "succeeded"
	IngestRunFailed    = "failed"
	IngestRunSkipped   = "skipped"
)

// IngestRun is the ledger row for one pipeline invocation. NextBatch is the
// first batch index not yet committed; a resumed run starts there.
type IngestRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Fingerprint    string         `gorm:"column:fingerprint;not null;index" json:"fingerprint"`
	Source         string         `gorm:"column:source;not null" json:"source"`
	Threshold      float64        `gorm:"column:threshold;not null" json:"threshold"`
	BatchSize      int            `gorm:"column:batch_size;not null" json:"batch_size"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Entities       int            `gorm:"column:entities;not null;default:0" json:"entities"`
	EdgesTotal     int            `gorm:"column:edges_total;not null;default:0" json:"edges_total"`
	BatchesTotal   int            `gorm:"column:batches_total;not null;default:0" json:"batches_total"`
	NextBatch      int            `gorm:"column:next_batch;not null;default:0" json:"next_batch"`
	EdgesCommitted int            `gorm:"column:edges_committed;not null;default:0" json:"edges_committed"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	ClusterLabels  datatypes.JSON `gorm:"column:cluster_labels" json:"cluster_labels"`
	StartedAt      time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (IngestRun) TableName() string { return "ingest_run" }
