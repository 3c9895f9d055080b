package main

import (
	"context"
	"fmt"
	"log/slog"
)

// ListCmd prints the names of saved reports.
type ListCmd struct {
	app *app
}

func (c *ListCmd) Execute(_ []string) error {
	fs, err := c.app.store()
	if err != nil {
		return err
	}
	names, err := fs.List(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(c.app.stdout, name)
	}
	return nil
}

// DeleteCmd removes saved reports.
type DeleteCmd struct {
	Args struct {
		Names []string `positional-arg-name:"NAME" required:"1"`
	} `positional-args:"yes"`

	app *app
}

func (c *DeleteCmd) Execute(_ []string) error {
	fs, err := c.app.store()
	if err != nil {
		return err
	}
	for _, name := range c.Args.Names {
		if err := fs.Delete(context.Background(), name); err != nil {
			return err
		}
		c.app.logger.Info("report deleted", slog.String("name", name))
	}
	return nil
}
