package main

import (
	"io"

	"github.com/jessevdk/go-flags"
)

// Options is the root command-line structure. Global flags may appear
// before or after the sub-command.
type Options struct {
	Config  []string `short:"f" long:"config" description:"settings file (JSON or YAML), repeatable; later files win"`
	Store   string   `short:"s" long:"store" description:"report directory, overrides telemetry.storeDir"`
	Debug   bool     `long:"debug" description:"log at debug level with source locations"`
	JSON    bool     `long:"log-json" description:"write logs as JSON"`
	LogFile string   `long:"log-file" value-name:"PATH" description:"append JSON logs to PATH instead of stderr, rotating at 5 MB"`

	Replay *ReplayCmd `command:"replay" description:"Replay JSONL events into a fresh collector and print the metrics"`
	Show   *ShowCmd   `command:"show" description:"Print a saved report"`
	List   *ListCmd   `command:"list" description:"List saved reports"`
	Delete *DeleteCmd `command:"delete" alias:"rm" description:"Delete a saved report"`
}

// newOptions wires every command back to the shared app state.
func newOptions(a *app) *Options {
	opts := &Options{
		Replay: &ReplayCmd{app: a},
		Show:   &ShowCmd{app: a},
		List:   &ListCmd{app: a},
		Delete: &DeleteCmd{app: a},
	}
	a.opts = opts
	return opts
}

// run parses args and executes the selected command.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()
	parser := flags.NewParser(newOptions(a), flags.HelpFlag|flags.PassDoubleDash)
	_, err := parser.ParseArgs(args)
	return err
}
