package main

import (
	"context"
	"slices"

	"github.com/armatrix/agent-lessons/telemetry/store"
)

// ShowCmd prints a saved report.
type ShowCmd struct {
	Timeline bool   `long:"timeline" description:"print the timeline as JSON lines instead of the metrics"`
	Format   string `short:"o" long:"output" choice:"text" choice:"json" default:"text" description:"report format"`

	Args struct {
		Name string `positional-arg-name:"NAME" required:"yes"`
	} `positional-args:"yes"`

	app *app
}

func (c *ShowCmd) Execute(_ []string) error {
	fs, err := c.app.store()
	if err != nil {
		return err
	}
	report, err := fs.Load(context.Background(), c.Args.Name)
	if err != nil {
		return err
	}
	if c.Timeline {
		_, err := store.WriteTimelineJSONL(c.app.stdout, slices.Values(report.Timeline))
		return err
	}
	return printReport(c.app.stdout, *report, c.Format)
}
