// Package pipeline wires the extract, clean, categorize and load stages into
// one run with a recorded lifecycle.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/audit"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/categorize"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/deadletter"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/extract"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/id"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/normalize"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

// Result reports what one run did.
type Result struct {
	RunID        string
	Extracted    int
	Cleaned      int
	Rejected     int
	Loaded       int
	Failed       int
	SnapshotPath string
	ErrorsPath   string
	Duration     time.Duration
}

// Pipeline owns one run of the full ETL sequence.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New builds a pipeline over cfg. The logger is shared with every stage.
func New(cfg *config.Config, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, now: time.Now}
}

// Run executes extract, clean, categorize and load against the configured
// input file, records the run in the store, and exports the dashboard
// snapshot. A document-level parse failure marks the run failed and leaves
// previously loaded data untouched. The store is released on every path.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	started := p.now()
	result := Result{RunID: id.NewRunID(started)}

	rules, err := p.loadRules()
	if err != nil {
		return result, err
	}

	st, err := store.Open(p.cfg.DatabasePath, p.logger)
	if err != nil {
		return result, err
	}
	defer st.Close()

	if err := st.EnsureSchema(); err != nil {
		return result, err
	}
	if err := st.SeedCategories(rules); err != nil {
		return result, err
	}
	if err := st.BeginRun(result.RunID, p.cfg.XMLInputPath); err != nil {
		return result, err
	}

	p.logger.Infow("run started", "run_id", result.RunID, "source", p.cfg.XMLInputPath)

	err = p.execute(ctx, st, rules, &result)
	result.Duration = p.now().Sub(started)
	if err != nil {
		if failErr := st.FailRun(result.RunID, err.Error()); failErr != nil {
			p.logger.Errorw("failed to mark run failed", "run_id", result.RunID, "error", failErr)
		}
		p.appendHistory(result, string(model.RunFailed))
		p.logger.Errorw("run failed", "run_id", result.RunID, "error", err)
		return result, err
	}

	if err := st.FinalizeRun(result.RunID, result.Extracted, result.Loaded, result.Rejected+result.Failed); err != nil {
		return result, err
	}
	p.recordQuality(st, result)
	p.appendHistory(result, string(model.RunCompleted))
	p.logger.Infow("run completed",
		"run_id", result.RunID,
		"extracted", result.Extracted,
		"loaded", result.Loaded,
		"rejected", result.Rejected,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// execute runs the stages after the run record exists. Any returned error
// fails the run.
func (p *Pipeline) execute(ctx context.Context, st *store.Store, rules config.RuleSet, result *Result) error {
	sink := deadletter.NewSink(p.cfg.DeadLetterPath, p.logger)

	source, err := extract.DefaultRegistry(sink, p.logger).ForPath(p.cfg.XMLInputPath)
	if err != nil {
		return err
	}

	f, err := os.Open(p.cfg.XMLInputPath)
	if err != nil {
		return errors.Wrapf(err, "opening input %s", p.cfg.XMLInputPath)
	}
	defer f.Close()

	elements, err := source.Extract(f)
	if err != nil {
		return err
	}
	result.Extracted = len(elements)

	if err := ctx.Err(); err != nil {
		return err
	}

	cleaner, err := normalize.NewCleaner(p.cfg, p.logger)
	if err != nil {
		return err
	}
	cleaned := cleaner.CleanAll(elements)
	result.Cleaned = len(cleaned)
	result.Rejected = len(elements) - len(cleaned)

	if len(cleaner.Errors()) > 0 {
		path, err := cleaner.ExportErrors(sink)
		if err != nil {
			p.logger.Warnw("failed to export validation errors", "error", err)
		} else {
			result.ErrorsPath = path
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	categorizer, err := categorize.New(rules, p.logger)
	if err != nil {
		return err
	}
	categorized := categorizer.CategorizeAll(cleaned)

	for start := 0; start < len(categorized); start += p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + p.cfg.BatchSize
		if end > len(categorized) {
			end = len(categorized)
		}
		loaded, err := st.LoadBatch(categorized[start:end], result.RunID)
		if err != nil {
			return err
		}
		result.Loaded += loaded.Loaded
		result.Failed += loaded.Failed
	}

	if _, err := st.ExportSnapshot(p.cfg.JSONOutputPath, p.cfg.SnapshotLimit); err != nil {
		return err
	}
	result.SnapshotPath = p.cfg.JSONOutputPath
	return nil
}

func (p *Pipeline) loadRules() (config.RuleSet, error) {
	if p.cfg.RulesPath == "" {
		return config.DefaultRules(), nil
	}
	return config.LoadRules(p.cfg.RulesPath)
}

// appendHistory records the run outcome in the audit CSV. History failures
// are logged only; they never affect the run result.
func (p *Pipeline) appendHistory(result Result, status string) {
	if p.cfg.AuditLogPath == "" {
		return
	}
	err := audit.Append(p.cfg.AuditLogPath, []audit.Entry{{
		Timestamp: p.now(),
		RunID:     result.RunID,
		Source:    p.cfg.XMLInputPath,
		Status:    status,
		Extracted: result.Extracted,
		Loaded:    result.Loaded,
		Rejected:  result.Rejected,
		Duration:  result.Duration,
	}})
	if err != nil {
		p.logger.Warnw("failed to append run history", "error", err)
	}
}

// recordQuality writes per-run ratios. Metric failures are logged and
// otherwise ignored; the run already succeeded.
func (p *Pipeline) recordQuality(st *store.Store, result Result) {
	if result.Extracted == 0 {
		return
	}
	metrics := map[string]float64{
		"success_rate":   float64(result.Loaded) / float64(result.Extracted),
		"rejection_rate": float64(result.Rejected) / float64(result.Extracted),
	}
	for name, value := range metrics {
		err := st.RecordMetric(model.QualityMetric{
			RunID:      result.RunID,
			Name:       name,
			Value:      value,
			MetricType: "ratio",
		})
		if err != nil {
			p.logger.Warnw("failed to record metric", "metric", name, "error", err)
		}
	}
}
