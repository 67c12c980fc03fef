package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"video-filter/pkg/config"
	"video-filter/pkg/domain"
	"video-filter/pkg/export"
	"video-filter/pkg/filter"
	"video-filter/pkg/source"
)

// ErrThresholdExceeded marks a run aborted because too large a fraction
// of the scanned records failed to parse.
var ErrThresholdExceeded = errors.New("too many malformed records")

// The parse-failure ratio is only enforced once this many records have
// been scanned, so a single bad row in a small fixture cannot abort a run.
const minThresholdSample = 1000

// Status is the job's lifecycle state. Complete and Failed are terminal;
// a failed run restarts from the beginning, there is no resume.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusScanning   Status = "scanning"
	StatusWriting    Status = "writing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Summary reports what a finished run did.
type Summary struct {
	Scanned    int64
	Matched    int64
	Skipped    int64 // malformed records skipped during the scan
	OutputPath string
	FileSize   int64
	Duration   time.Duration
}

// Job is one filter-and-export run: scan the source sequentially, keep
// the records the predicate accepts, write them to a single Parquet file.
type Job struct {
	cfg    *config.Config
	src    source.Source
	pred   filter.Predicate
	writer *export.Writer
	log    *logrus.Logger

	// out receives the user-facing progress and completion lines.
	// Defaults to stdout; tests capture it.
	out io.Writer

	status  Status
	summary Summary
}

// New creates a job over the given source and predicate.
func New(cfg *config.Config, src source.Source, pred filter.Predicate, log *logrus.Logger) *Job {
	return &Job{
		cfg:    cfg,
		src:    src,
		pred:   pred,
		writer: export.NewWriter(cfg.Output.CoreColumns),
		log:    log,
		out:    os.Stdout,
		status: StatusNotStarted,
	}
}

// SetOutput redirects the user-facing progress lines, for tests.
func (j *Job) SetOutput(w io.Writer) {
	j.out = w
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() Status {
	return j.status
}

// Summary returns the counters of the run so far.
func (j *Job) Summary() Summary {
	return j.summary
}

// Run executes the job to completion. The artifact exists and is complete
// only if Run returns nil, after the completion line has been printed.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	matches, err := j.scan(ctx)
	if err != nil {
		return j.fail(start, err)
	}

	j.status = StatusWriting
	j.log.WithFields(logrus.Fields{
		"matches": len(matches),
		"path":    j.cfg.Output.Path,
	}).Info("scan finished, writing output")

	res, err := j.writer.Write(ctx, j.cfg.Output.Path, matches)
	if err != nil {
		return j.fail(start, err)
	}

	j.status = StatusComplete
	j.summary.OutputPath = res.Path
	j.summary.FileSize = res.FileSize
	j.summary.Duration = time.Since(start)

	fmt.Fprintln(j.out, "Process Complete. The filtered dataset is saved and ready for download.")
	fmt.Fprintf(j.out, "File Location: %s\n", res.Path)
	fmt.Fprintf(j.out, "Total rows (videos) saved: %d\n", res.RecordCount)
	fmt.Fprintf(j.out, "Execution Time: %.2f seconds\n", j.summary.Duration.Seconds())

	return nil
}

// scan drives the source iterator to exhaustion, accumulating matches in
// source order. Malformed records are skipped and counted against the
// configured threshold.
func (j *Job) scan(ctx context.Context) ([]domain.Record, error) {
	j.status = StatusScanning
	j.log.WithField("source", j.cfg.Source.URL).Info("opening source")

	it, err := j.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := it.Close(); err != nil {
			j.log.WithError(err).Warn("closing source")
		}
	}()

	var matches []domain.Record

	for {
		rec, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		var perr *source.ParseError
		if errors.As(err, &perr) {
			j.summary.Scanned++
			j.summary.Skipped++
			j.log.WithError(perr).Warn("skipping malformed record")

			if err := j.checkThreshold(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}

		j.summary.Scanned++

		ok, err := j.pred.Matches(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("evaluate record %d: %w", j.summary.Scanned, err)
		}
		if ok {
			j.summary.Matched++
			matches = append(matches, rec.Clone())
		}

		if j.cfg.ProgressInterval > 0 && j.summary.Scanned%j.cfg.ProgressInterval == 0 {
			fmt.Fprintf(j.out, "Found %d videos so far...\n", j.summary.Matched)
		}

		if j.cfg.MaxRecords > 0 && j.summary.Scanned >= j.cfg.MaxRecords {
			j.log.WithField("scanned", j.summary.Scanned).Info("record cap reached, stopping scan")
			break
		}
	}

	return matches, nil
}

func (j *Job) checkThreshold() error {
	if j.summary.Scanned < minThresholdSample {
		return nil
	}

	ratio := float64(j.summary.Skipped) / float64(j.summary.Scanned)
	if ratio > j.cfg.ParseFailureThreshold {
		return fmt.Errorf("%w: %d of %d records (%.1f%%)",
			ErrThresholdExceeded, j.summary.Skipped, j.summary.Scanned, ratio*100)
	}
	return nil
}

func (j *Job) fail(start time.Time, err error) error {
	j.status = StatusFailed
	j.summary.Duration = time.Since(start)
	return err
}
