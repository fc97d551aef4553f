package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/simgraph/internal/domain"
	"github.com/yungbote/simgraph/internal/pkg/dbctx"
	"github.com/yungbote/simgraph/internal/platform/logger"
)

type IngestRunRepo interface {
	Create(dbc dbctx.Context, run *types.IngestRun) (*types.IngestRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.IngestRun, error)
	GetLatestByFingerprint(dbc dbctx.Context, fingerprint string) (*types.IngestRun, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*types.IngestRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type ingestRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestRunRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &ingestRunRepo{
		db:  db,
		log: baseLog.With("repo", "IngestRunRepo"),
	}
}

func (r *ingestRunRepo) Create(dbc dbctx.Context, run *types.IngestRun) (*types.IngestRun, error) {
	if run == nil {
		return nil, nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *ingestRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.IngestRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.IngestRun
	if err := dbc.DB(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

// GetLatestByFingerprint returns nil when no run has recorded fingerprint.
func (r *ingestRunRepo) GetLatestByFingerprint(dbc dbctx.Context, fingerprint string) (*types.IngestRun, error) {
	if fingerprint == "" {
		return nil, nil
	}
	var run types.IngestRun
	err := dbc.DB(r.db).
		Where("fingerprint = ? AND status <> ?", fingerprint, types.IngestRunSkipped).
		Order("started_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *ingestRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]*types.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.IngestRun
	if err := dbc.DB(r.db).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ingestRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.IngestRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
