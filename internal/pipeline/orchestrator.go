// Package pipeline orchestrates one Extract-Transform-Load run: it resolves
// configured components through the registry, drives the three phases in
// order, and tracks the metrics record callers depend on.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datafreight/freight/pkg/config"
	"github.com/datafreight/freight/pkg/connector/core"
	"github.com/datafreight/freight/pkg/connector/registry"
	"github.com/datafreight/freight/pkg/errors"
	"github.com/datafreight/freight/pkg/logger"
	"github.com/datafreight/freight/pkg/metrics"
	"github.com/datafreight/freight/pkg/models"
)

// Status is the lifecycle state of one pipeline job. Transitions only move
// forward; terminal states are absorbing.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusRunning             Status = "running"
	StatusCompletedSuccess    Status = "completed_success"
	StatusCompletedEmpty      Status = "completed_empty"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
	StatusSetupFailed         Status = "setup_failed"
)

// Metrics is the stable record a caller reads after (or during) a run.
// Timestamps are epoch seconds and stay null until the run starts/ends.
type Metrics struct {
	JobID              string   `json:"job_id"`
	StartTime          *float64 `json:"start_time"`
	EndTime            *float64 `json:"end_time"`
	DurationSeconds    *float64 `json:"duration_seconds"`
	ExtractionRows     int      `json:"extraction_rows"`
	TransformationRows int      `json:"transformation_rows"`
	LoadingRows        int      `json:"loading_rows"`
	Errors             int      `json:"errors"`
	Status             Status   `json:"status"`
}

type namedExtractor struct {
	name     string
	instance core.Extractor
}

type namedTransformer struct {
	name     string
	instance core.Transformer
}

type namedLoader struct {
	name     string
	instance core.Loader
}

// Orchestrator owns one job: its components, its metrics, and its status.
// It is built for a single Run; create a new one per job.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	logger   *zap.Logger
	jobID    string

	extractors     []namedExtractor
	transformers   []namedTransformer
	loaders        []namedLoader
	skippedLoaders int

	mu      sync.Mutex
	metrics Metrics
}

// New creates an orchestrator for the given configuration. A nil reg falls
// back to the default registry; a nil log derives a job-scoped handle from
// the global logger.
func New(cfg *config.Config, reg *registry.Registry, log *zap.Logger) *Orchestrator {
	jobID := ""
	if cfg != nil {
		jobID = cfg.JobID
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}

	if reg == nil {
		reg = registry.Default()
	}
	if log == nil {
		log = logger.ForJob(jobID)
	} else {
		log = log.With(zap.String("job_id", jobID))
	}

	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		logger:   log,
		jobID:    jobID,
		metrics:  Metrics{JobID: jobID, Status: StatusInitialized},
	}
}

// JobID returns the job identity.
func (o *Orchestrator) JobID() string {
	return o.jobID
}

// Setup resolves and constructs every configured component. A failure on one
// component is logged, counted, and skipped; only a failure of setup itself
// (missing configuration, or a panicking constructor) moves the job to
// StatusSetupFailed and returns an error.
func (o *Orchestrator) Setup() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeSetup, "panic during setup: %v", r)
		}
		if err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.metrics.Status = StatusSetupFailed
			o.mu.Unlock()
			o.logger.Error("pipeline setup failed", zap.Error(err))
		}
	}()

	if o.cfg == nil {
		return errors.New(errors.ErrorTypeSetup, "no configuration provided")
	}

	o.logger.Info("setting up pipeline components")

	for _, component := range o.cfg.Extractors {
		instance, createErr := o.registry.CreateExtractor(component, o.logger)
		if createErr != nil {
			o.recordComponentError("extractor", component.Name, createErr)
			continue
		}
		o.extractors = append(o.extractors, namedExtractor{component.Name, instance})
		o.logger.Info("added extractor",
			zap.String("name", component.Name),
			zap.String("type", component.Type))
	}

	for _, component := range o.cfg.Transformers {
		instance, createErr := o.registry.CreateTransformer(component, o.logger)
		if createErr != nil {
			o.recordComponentError("transformer", component.Name, createErr)
			continue
		}
		o.transformers = append(o.transformers, namedTransformer{component.Name, instance})
		o.logger.Info("added transformer",
			zap.String("name", component.Name),
			zap.String("type", component.Type))
	}

	for _, component := range o.cfg.Loaders {
		instance, createErr := o.registry.CreateLoader(component, o.logger)
		if createErr != nil {
			o.skippedLoaders++
			o.recordComponentError("loader", component.Name, createErr)
			continue
		}
		o.loaders = append(o.loaders, namedLoader{component.Name, instance})
		o.logger.Info("added loader",
			zap.String("name", component.Name),
			zap.String("type", component.Type))
	}

	o.logger.Info("pipeline setup complete",
		zap.Int("extractors", len(o.extractors)),
		zap.Int("transformers", len(o.transformers)),
		zap.Int("loaders", len(o.loaders)))
	return nil
}

func (o *Orchestrator) recordComponentError(kind, name string, err error) {
	o.mu.Lock()
	o.metrics.Errors++
	o.mu.Unlock()
	o.logger.Error("failed to set up component",
		zap.String("kind", kind),
		zap.String("component", name),
		zap.Error(err))
}

// Run executes the pipeline phases. It always stamps end time and duration
// and emits the metrics summary before returning, whatever the outcome. A
// panic inside a phase or a cancelled context maps to StatusFailed with the
// error returned.
func (o *Orchestrator) Run(ctx context.Context) (result Metrics, err error) {
	o.logger.Info("starting pipeline job")

	start := time.Now()
	startEpoch := epochSeconds(start)
	o.mu.Lock()
	o.metrics.StartTime = &startEpoch
	o.metrics.Status = StatusRunning
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "panic during run: %v", r)
		}
		if err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.metrics.Status = StatusFailed
			o.mu.Unlock()
		}

		end := time.Now()
		endEpoch := epochSeconds(end)
		duration := end.Sub(start).Seconds()
		o.mu.Lock()
		o.metrics.EndTime = &endEpoch
		o.metrics.DurationSeconds = &duration
		result = o.metrics
		o.mu.Unlock()

		o.logSummary(result)
		metrics.RecordRun(string(result.Status), duration,
			result.ExtractionRows, result.TransformationRows, result.LoadingRows, result.Errors)
	}()

	batches := o.extract(ctx)
	if err = ctx.Err(); err != nil {
		return result, err
	}
	if models.TotalRows(batches) == 0 {
		o.logger.Warn("no data extracted, pipeline completed with empty result")
		o.setStatus(StatusCompletedEmpty)
		return result, nil
	}

	batches = o.transform(ctx, batches)
	if err = ctx.Err(); err != nil {
		return result, err
	}
	if models.TotalRows(batches) == 0 {
		o.logger.Warn("no data after transformation, pipeline completed with empty result")
		o.setStatus(StatusCompletedEmpty)
		return result, nil
	}

	if o.load(ctx, batches) {
		o.setStatus(StatusCompletedSuccess)
		o.logger.Info("pipeline completed successfully")
	} else {
		o.setStatus(StatusCompletedWithErrors)
		o.logger.Warn("pipeline completed with errors")
	}
	if err = ctx.Err(); err != nil {
		return result, err
	}

	return result, nil
}

// extract runs every extractor, fail-soft: a failing extractor is counted
// and skipped while the others still contribute.
func (o *Orchestrator) extract(ctx context.Context) []*models.Batch {
	if len(o.extractors) == 0 {
		o.logger.Warn("no extractors configured, skipping extraction phase")
		return nil
	}

	o.logger.Info("starting extraction phase", zap.Int("extractors", len(o.extractors)))

	var batches []*models.Batch
	for _, extractor := range o.extractors {
		batch, err := extractor.instance.Extract(ctx)
		if err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.mu.Unlock()
			o.logger.Error("extractor failed",
				zap.String("component", extractor.name),
				zap.Error(err))
			continue
		}

		rows := batch.Len()
		o.mu.Lock()
		o.metrics.ExtractionRows += rows
		o.mu.Unlock()
		o.logger.Info("extractor finished",
			zap.String("component", extractor.name),
			zap.Int("rows", rows))
		batches = append(batches, batch)
	}

	o.logger.Info("extraction phase completed",
		zap.Int("total_rows", models.TotalRows(batches)))
	return batches
}

// transform passes the batch set through the transformer chain, fail-fast:
// the first transformer error discards the accumulated result and abandons
// the rest of the chain. An empty result also stops the chain early.
func (o *Orchestrator) transform(ctx context.Context, batches []*models.Batch) []*models.Batch {
	if len(o.transformers) == 0 {
		o.logger.Warn("no transformers configured, passing data through")
		o.setTransformationRows(models.TotalRows(batches))
		return batches
	}

	o.logger.Info("starting transformation phase", zap.Int("transformers", len(o.transformers)))

	current := batches
	for _, transformer := range o.transformers {
		next, err := transformer.instance.Transform(ctx, current)
		if err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.mu.Unlock()
			o.logger.Error("transformer failed, abandoning chain",
				zap.String("component", transformer.name),
				zap.Error(err))
			current = nil
			break
		}

		current = next
		if models.TotalRows(current) == 0 {
			o.logger.Warn("transformer produced no rows, stopping chain",
				zap.String("component", transformer.name))
			break
		}

		o.logger.Info("transformer finished",
			zap.String("component", transformer.name),
			zap.Int("rows", models.TotalRows(current)))
	}

	total := models.TotalRows(current)
	o.setTransformationRows(total)
	o.logger.Info("transformation phase completed", zap.Int("total_rows", total))
	return current
}

// load fans the batch set out to every loader, fail-soft per loader. The
// return value is the AND over all configured loaders: a loader skipped at
// setup already failed this run's delivery, and data with no loaders at all
// counts as a failure, since rows were produced but never written.
func (o *Orchestrator) load(ctx context.Context, batches []*models.Batch) bool {
	if len(o.loaders) == 0 {
		o.logger.Warn("no loaders available, data will not be written anywhere")
		return false
	}

	o.logger.Info("starting loading phase", zap.Int("loaders", len(o.loaders)))

	success := o.skippedLoaders == 0
	for _, loader := range o.loaders {
		if err := loader.instance.ValidateDestination(ctx); err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.mu.Unlock()
			o.logger.Error("loader failed destination validation",
				zap.String("component", loader.name),
				zap.Error(err))
			success = false
			continue
		}

		if err := loader.instance.Load(ctx, batches); err != nil {
			o.mu.Lock()
			o.metrics.Errors++
			o.mu.Unlock()
			o.logger.Error("loader failed",
				zap.String("component", loader.name),
				zap.Error(err))
			success = false
			continue
		}

		rows := models.TotalRows(batches)
		o.mu.Lock()
		o.metrics.LoadingRows = rows
		o.mu.Unlock()
		o.logger.Info("loader finished",
			zap.String("component", loader.name),
			zap.Int("rows", rows))
	}

	return success
}

// Metrics returns a snapshot of the current metrics record. Safe to call
// mid-run from another goroutine.
func (o *Orchestrator) Metrics() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics
}

func (o *Orchestrator) setStatus(status Status) {
	o.mu.Lock()
	o.metrics.Status = status
	o.mu.Unlock()
}

func (o *Orchestrator) setTransformationRows(rows int) {
	o.mu.Lock()
	o.metrics.TransformationRows = rows
	o.mu.Unlock()
}

func (o *Orchestrator) logSummary(m Metrics) {
	fields := []zap.Field{
		zap.String("status", string(m.Status)),
		zap.Int("extraction_rows", m.ExtractionRows),
		zap.Int("transformation_rows", m.TransformationRows),
		zap.Int("loading_rows", m.LoadingRows),
		zap.Int("errors", m.Errors),
	}
	if m.DurationSeconds != nil {
		fields = append(fields, zap.String("duration", fmt.Sprintf("%.2fs", *m.DurationSeconds)))
	}
	o.logger.Info("pipeline job finished", fields...)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
