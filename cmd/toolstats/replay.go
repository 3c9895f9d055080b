package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/armatrix/agent-lessons/telemetry"
	"github.com/armatrix/agent-lessons/telemetry/store"
)

// ReplayCmd feeds recorded events through a collector.
type ReplayCmd struct {
	Save        string `long:"save" value-name:"NAME" description:"save the resulting report under NAME"`
	Timeline    string `long:"timeline" value-name:"PATH" description:"write the timeline as JSON lines to PATH (- for stdout)"`
	MaxTimeline int    `long:"max-timeline" description:"keep only the newest N timeline entries (default telemetry.timelineMax)"`
	Format      string `short:"o" long:"output" choice:"text" choice:"json" default:"text" description:"report format"`
	Strict      bool   `long:"strict" description:"fail when a line is not a recognised call event"`

	Args struct {
		Files []string `positional-arg-name:"FILE" description:"JSONL event logs; - or none reads stdin"`
	} `positional-args:"yes"`

	app *app
}

func (c *ReplayCmd) Execute(_ []string) error {
	if err := c.app.setup(); err != nil {
		return err
	}
	logger := c.app.logger

	limit := c.MaxTimeline
	if limit == 0 {
		limit = c.app.settings.Telemetry.TimelineMax
	}
	collector := telemetry.New(
		telemetry.WithLogger(logger),
		telemetry.WithMaxTimeline(limit),
	)

	files := c.Args.Files
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, name := range files {
		if err := c.replayFile(collector, name); err != nil {
			return err
		}
	}

	report := collector.Report()
	logger.Info("replay finished",
		slog.Int("files", len(files)),
		slog.Int("calls", report.Metrics.TotalCalls),
		slog.Int("pending", len(report.Pending)))

	if c.Timeline != "" {
		if err := c.writeTimeline(collector); err != nil {
			return err
		}
	}
	if c.Save != "" {
		fs, err := c.app.store()
		if err != nil {
			return err
		}
		if err := fs.Save(context.Background(), c.Save, report); err != nil {
			return err
		}
		logger.Info("report saved", slog.String("name", c.Save), slog.String("dir", fs.Dir()))
	}
	if c.Timeline == "-" {
		return nil
	}
	return printReport(c.app.stdout, report, c.Format)
}

func (c *ReplayCmd) replayFile(collector *telemetry.Collector, name string) error {
	var r io.Reader = c.app.stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	err := store.ReadEventsJSONL(r, func(line int, raw json.RawMessage) error {
		class := collector.Ingest(raw)
		c.app.logger.Debug("event", slog.String("file", name), slog.Int("line", line), slog.String("class", class.String()))
		if c.Strict && class == telemetry.ClassIgnore {
			return fmt.Errorf("line %d: not a call event", line)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (c *ReplayCmd) writeTimeline(collector *telemetry.Collector) error {
	if c.Timeline == "-" {
		_, err := store.WriteTimelineJSONL(c.app.stdout, collector.ExportTimeline())
		return err
	}
	f, err := os.Create(c.Timeline)
	if err != nil {
		return err
	}
	n, err := store.WriteTimelineJSONL(f, collector.ExportTimeline())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}
	c.app.logger.Info("timeline written", slog.String("path", c.Timeline), slog.Int("entries", n))
	return nil
}
