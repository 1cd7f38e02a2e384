package worker

import (
	"sync"

	"gorm.io/gorm"

	"github.com/gasopt/optimizer/internal/model"
)

// Persistence wraps the worker's relational store, grounded on the
// teacher's JobRepository (internal/repository/job_repo.go) but generalized
// to the single upsert-by-id operation spec.md §4.10 requires, plus
// load-all for startup recovery (§4.7).
type Persistence struct {
	db *gorm.DB

	// writeMu serializes writes for a single record so in-memory and
	// on-disk observations stay consistent, per spec.md §4.10's "writes
	// for a single record must be serialized" requirement.
	writeMu sync.Mutex
}

func NewPersistence(db *gorm.DB) *Persistence {
	return &Persistence{db: db}
}

// EnsureSchema creates the analysis_jobs table and its status index if
// missing.
func (p *Persistence) EnsureSchema() error {
	return p.db.AutoMigrate(&model.WorkerJob{})
}

// LoadAll loads every persisted job, for startup recovery.
func (p *Persistence) LoadAll() ([]*model.WorkerJob, error) {
	var jobs []*model.WorkerJob
	if err := p.db.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Upsert writes job's current state, serialized against concurrent writes
// of the same or other records.
func (p *Persistence) Upsert(job *model.WorkerJob) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.db.Save(job).Error
}
