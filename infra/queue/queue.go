// Package queue moves learning records off the dispatch path onto river jobs
// stored in Postgres.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"

	"github.com/kilianp07/fuelops/core/learning"
	"github.com/kilianp07/fuelops/core/logger"
	"github.com/kilianp07/fuelops/core/model"
)

// LearningQueue is the river queue used for learning records.
const LearningQueue = "learning"

// Config controls the learning queue.
type Config struct {
	Enabled     bool `json:"enabled"`
	MaxWorkers  int  `json:"max_workers"`
	MaxAttempts int  `json:"max_attempts"`
	// Migrate runs the river schema migrations on start.
	Migrate bool `json:"migrate"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxWorkers < 0 || c.MaxAttempts < 0 {
		return errors.New("queue max_workers and max_attempts must be >= 0")
	}
	return nil
}

// LearningRecordArgs carries one decision sample.
type LearningRecordArgs struct {
	Sample model.DecisionSample `json:"sample"`
}

func (LearningRecordArgs) Kind() string { return "platform_learning_record" }

func (LearningRecordArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: LearningQueue}
}

// LearningRecordWorker persists queued samples through the target recorder.
type LearningRecordWorker struct {
	river.WorkerDefaults[LearningRecordArgs]
	target learning.Recorder
	log    logger.Logger
}

func NewLearningRecordWorker(target learning.Recorder, log logger.Logger) *LearningRecordWorker {
	return &LearningRecordWorker{target: target, log: logger.OrNop(log)}
}

func (w *LearningRecordWorker) Work(ctx context.Context, job *river.Job[LearningRecordArgs]) error {
	s := job.Args.Sample
	if err := w.target.Record(ctx, s); err != nil {
		w.log.Warnf("learning record %s attempt %d: %v", s.SampleID, job.Attempt, err)
		return fmt.Errorf("record sample %s: %w", s.SampleID, err)
	}
	w.log.Debugw("learning record stored", map[string]any{"sample_id": s.SampleID, "task_id": s.TaskSnapshot.ID})
	return nil
}

type inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Recorder implements learning.Recorder by enqueueing a job per sample.
type Recorder struct {
	client      inserter
	maxAttempts int
}

func (r *Recorder) Record(ctx context.Context, s model.DecisionSample) error {
	var opts *river.InsertOpts
	if r.maxAttempts > 0 {
		opts = &river.InsertOpts{Queue: LearningQueue, MaxAttempts: r.maxAttempts}
	}
	if _, err := r.client.Insert(ctx, LearningRecordArgs{Sample: s}, opts); err != nil {
		return fmt.Errorf("enqueue sample %s: %w", s.SampleID, err)
	}
	return nil
}

// Queue owns the river client processing learning records.
type Queue struct {
	client *river.Client[pgx.Tx]
	rec    *Recorder
	log    logger.Logger
}

// New builds the river client on pool. Jobs are written to target once worked.
func New(ctx context.Context, pool *pgxpool.Pool, cfg Config, target learning.Recorder, log logger.Logger) (*Queue, error) {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	driver := riverpgxv5.New(pool)
	if cfg.Migrate {
		migrator, err := rivermigrate.New(driver, nil)
		if err != nil {
			return nil, fmt.Errorf("river migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			return nil, fmt.Errorf("river migrate: %w", err)
		}
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, NewLearningRecordWorker(target, log))
	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			LearningQueue: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:     workers,
		MaxAttempts: cfg.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	return &Queue{client: client, rec: &Recorder{client: client, maxAttempts: cfg.MaxAttempts}, log: log}, nil
}

// Recorder returns the enqueueing recorder.
func (q *Queue) Recorder() *Recorder { return q.rec }

// Start begins working jobs.
func (q *Queue) Start(ctx context.Context) error {
	q.log.Infof("learning queue started")
	return q.client.Start(ctx)
}

// Stop waits for running jobs to finish.
func (q *Queue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}
