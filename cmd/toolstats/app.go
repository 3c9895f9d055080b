package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/armatrix/agent-lessons/internal/config"
	"github.com/armatrix/agent-lessons/internal/logging"
	"github.com/armatrix/agent-lessons/telemetry"
	"github.com/armatrix/agent-lessons/telemetry/store"
)

// defaultStoreDir is used when neither --store nor telemetry.storeDir is set.
const defaultStoreDir = ".toolstats"

// app is the state shared by all commands once global flags are parsed.
type app struct {
	opts   *Options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	settings *config.Settings
	logger   *slog.Logger
	logFile  io.Closer
}

// setup loads settings and builds the logger. It is idempotent.
func (a *app) setup() error {
	if a.settings != nil {
		return nil
	}
	if a.opts.LogFile != "" {
		logger, f, err := logging.OpenFile(a.opts.LogFile, a.opts.Debug)
		if err != nil {
			return err
		}
		a.logger, a.logFile = logger, f
	} else {
		a.logger = logging.New(a.stderr, logging.Options{Debug: a.opts.Debug, JSON: a.opts.JSON})
	}

	paths := a.opts.Config
	if len(paths) == 0 {
		paths = config.DefaultSettingsPaths(".")
	}
	s, err := config.LoadSettings(paths...)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger.Debug("settings loaded", slog.Any("paths", paths))
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) store() (*store.FileStore, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	dir := a.opts.Store
	if dir == "" {
		dir = a.settings.Telemetry.StoreDir
	}
	if dir == "" {
		dir = defaultStoreDir
	}
	return store.NewFileStore(dir, a.logger)
}

// summary is the machine-readable form of a printed report.
type summary struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Metrics     telemetry.MetricsSnapshot `json:"metrics"`
	SuccessRate float64                   `json:"success_rate"`
	Pending     int                       `json:"pending"`
	Timeline    int                       `json:"timeline_entries"`
	Evicted     int                       `json:"evicted,omitempty"`
}

func summarize(r telemetry.Report) summary {
	return summary{
		GeneratedAt: r.GeneratedAt,
		Metrics:     r.Metrics,
		SuccessRate: r.Metrics.SuccessRate(),
		Pending:     len(r.Pending),
		Timeline:    len(r.Timeline),
		Evicted:     r.Evicted,
	}
}

// printReport writes r as indented JSON or as a per-kind table.
func printReport(w io.Writer, r telemetry.Report, format string) error {
	s := summarize(r)
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	m := s.Metrics
	fmt.Fprintf(w, "calls: %d  ok: %d  failed: %d  success: %.1f%%\n",
		m.TotalCalls, m.SuccessfulCalls, m.FailedCalls, s.SuccessRate*100)
	fmt.Fprintf(w, "pending: %d  orphans: %d  duplicates: %d  malformed: %d  clamped: %d\n",
		s.Pending, m.OrphanedCompletions, m.DuplicateStarts, m.MalformedEvents, m.ClampedDurations)
	if s.Evicted > 0 {
		fmt.Fprintf(w, "timeline: %d entries (%d evicted)\n", s.Timeline, s.Evicted)
	}
	if len(m.PerKind) == 0 {
		return nil
	}

	kinds := make([]string, 0, len(m.PerKind))
	for k := range m.PerKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "KIND\tCALLS\tOK\tFAILED\tAVG\tMIN\tMAX")
	for _, k := range kinds {
		ks := m.PerKind[k]
		name := k
		if name == "" {
			name = "(none)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			name, ks.Count, ks.Successes, ks.Failures,
			ks.AverageDuration, ks.MinDuration, ks.MaxDuration)
	}
	return tw.Flush()
}
