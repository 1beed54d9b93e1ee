package log

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// L is the kernel logger.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{Name: "ukern"})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// Setup points the kernel logger at w. verbose raises the level to Debug
// unless TRACE already asked for more.
func Setup(w io.Writer, verbose, color bool) {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	if str := os.Getenv("TRACE"); str != "" {
		level = hclog.Trace
	}
	opts := &hclog.LoggerOptions{
		Name:   "ukern",
		Level:  level,
		Output: w,
	}
	if color {
		opts.Color = hclog.ForceColor
	}
	L = hclog.New(opts)
}
