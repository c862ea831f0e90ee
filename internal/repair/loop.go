// Package repair runs the validate-and-repair loop: run the target's parser
// artifact, compare its output with the reference table, then patch the
// artifact through the rule table or regenerate it, until the tables match
// or the iteration budget runs out.
package repair

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/compare"
	"github.com/insightdelivered/statement-agent/internal/history"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/workspace"
)

// ErrParseFailed is returned when the artifact fails to execute on two
// consecutive iterations.
var ErrParseFailed = errors.New("parser artifact failed to execute")

// Generator writes a fresh artifact for a target.
type Generator interface {
	Generate(ctx context.Context, target string) (*artifact.Artifact, error)
}

// Recorder receives one entry per iteration.
type Recorder interface {
	Record(e history.Entry) error
}

type Config struct {
	Target   string
	MaxIters int
	MaxDiffs int
}

// Status is the outcome of a run that did not fail fatally.
type Status int

const (
	Success Status = iota
	Exhausted
)

func (s Status) String() string {
	if s == Success {
		return "success"
	}
	return "exhausted"
}

// Result describes a finished run.
type Result struct {
	RunID      string         `json:"run_id"`
	Target     string         `json:"target"`
	Status     Status         `json:"-"`
	Outcome    string         `json:"status"`
	Iterations int            `json:"iterations"`
	Report     compare.Report `json:"report"`
	Diff       string         `json:"diff,omitempty"`
	Table      *models.Table  `json:"-"`
}

// ExitCode maps the status to a process exit code.
func (r Result) ExitCode() int {
	if r.Status == Success {
		return 0
	}
	return 1
}

type Loop struct {
	Layout    workspace.Layout
	Store     artifact.Store
	Env       artifact.Env
	Generator Generator
	Recorder  Recorder
	Rules     []Rule
	Log       *zap.Logger
}

func (l *Loop) logger() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

func (l *Loop) rules() []Rule {
	if l.Rules == nil {
		return DefaultRules
	}
	return l.Rules
}

// Run drives one repair run. Missing inputs, an undecodable artifact, an
// artifact without a parse pipeline and repeated execution failures are
// returned as errors; running out of iterations is not an error.
func (l *Loop) Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.MaxIters < 1 {
		cfg.MaxIters = 1
	}
	if cfg.MaxDiffs < 1 {
		cfg.MaxDiffs = 10
	}
	res := Result{RunID: uuid.NewString(), Target: cfg.Target, Status: Exhausted}
	log := l.logger().With(zap.String("target", cfg.Target), zap.String("run_id", res.RunID))

	exp, err := l.Layout.LoadReference(cfg.Target)
	if err != nil {
		return res, err
	}
	pdfPath, err := l.Layout.LocatePDF(cfg.Target)
	if err != nil {
		return res, err
	}
	log.Debug("inputs located", zap.String("pdf", pdfPath), zap.Strings("columns", exp.Columns))

	a, err := l.Store.Load(cfg.Target)
	switch {
	case errors.Cause(err) == artifact.ErrNotFound:
		a = nil
	case err != nil:
		return res, err
	}

	pc := PatchContext{Columns: exp.Columns}
	execErrs := 0

	for i := 1; i <= cfg.MaxIters; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Iterations = i
		entry := history.Entry{RunID: res.RunID, Target: cfg.Target, Iteration: i}
		last := i == cfg.MaxIters

		if a == nil {
			a, err = l.regenerate(ctx, cfg.Target)
			if err != nil {
				log.Warn("generator failed", zap.Int("iteration", i), zap.Error(err))
				entry.Outcome, entry.Error = history.OutcomeGeneratorFailed, err.Error()
				l.record(log, entry)
				continue
			}
		}

		got, err := a.Run(l.Env, pdfPath)
		if err != nil {
			if errors.Cause(err) == artifact.ErrParseMissing {
				return res, err
			}
			execErrs++
			log.Warn("artifact failed to execute", zap.Int("iteration", i), zap.Error(err))
			entry.Outcome, entry.Error = history.OutcomeExecError, err.Error()
			l.record(log, entry)
			if execErrs >= 2 {
				return res, errors.Wrap(ErrParseFailed, err.Error())
			}
			a = nil
			continue
		}
		execErrs = 0

		report := compare.Compare(got, exp, cfg.MaxDiffs)
		res.Report, res.Diff, res.Table = report, report.String(), got
		entry.Diff = res.Diff
		for _, c := range report.Categories {
			entry.Categories = append(entry.Categories, string(c))
		}

		if report.OK() {
			log.Info("tables match", zap.Int("iteration", i))
			res.Status = Success
			entry.Outcome = history.OutcomePass
			l.record(log, entry)
			break
		}

		log.Info("tables differ", zap.Int("iteration", i), zap.Strings("categories", entry.Categories))
		if err := l.Layout.WriteDebug(cfg.Target, got, exp, report); err != nil {
			log.Warn("writing debug tables failed", zap.Error(err))
		}

		if last {
			entry.Outcome = history.OutcomeMismatch
			l.record(log, entry)
			break
		}

		patched := a.Clone()
		applied := Patch(l.rules(), patched, compare.CategoriesOf(res.Diff), pc)
		if len(applied) > 0 {
			if err := l.Store.Save(patched); err != nil {
				return res, errors.Wrap(err, "save patched artifact")
			}
			a = patched
			log.Info("artifact patched", zap.Strings("rules", applied), zap.Int("revision", a.Revision))
			entry.Outcome, entry.Patches = history.OutcomePatched, applied
			l.record(log, entry)
			continue
		}

		log.Info("no rule applies, regenerating", zap.Int("iteration", i))
		if err := l.Store.Delete(cfg.Target); err != nil {
			log.Warn("discarding artifact failed", zap.Error(err))
		}
		a = nil
		entry.Outcome = history.OutcomeRegenerate
		l.record(log, entry)
	}

	res.Outcome = res.Status.String()
	return res, nil
}

func (l *Loop) regenerate(ctx context.Context, target string) (*artifact.Artifact, error) {
	if l.Generator == nil {
		return nil, errors.New("no generator configured")
	}
	a, err := l.Generator.Generate(ctx, target)
	if err != nil {
		return nil, err
	}
	if a.Target == "" {
		a.Target = target
	}
	if err := l.Store.Save(a); err != nil {
		return nil, errors.Wrap(err, "save generated artifact")
	}
	return a, nil
}

func (l *Loop) record(log *zap.Logger, e history.Entry) {
	if l.Recorder == nil {
		return
	}
	if err := l.Recorder.Record(e); err != nil {
		log.Warn("recording iteration failed", zap.Error(err))
	}
}
