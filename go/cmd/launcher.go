package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type command struct {
	name, desc string
	main       func(args []string) int
}

var commands = make(map[string]*command)
var order []string
var pad int

// Register adds a subcommand. main receives its own name as args[0].
func Register(name, desc string, main func(args []string) int) {
	if len(name) > pad {
		pad = len(name)
	}
	commands[name] = &command{name, desc, main}
	order = append(order, name)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fstr := fmt.Sprintf("  %%-%ds | %%s\n", pad)
	for _, name := range order {
		cmd := commands[name]
		fmt.Fprintf(w, fstr, cmd.name, cmd.desc)
	}
	fmt.Fprintf(w, "\nExample: %s run -put echo=bins/echo.s echo hello\n\n", os.Args[0])
}

func Main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Command '%s' not found.\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}
	args := append([]string{strings.Join(os.Args[:2], " ")}, os.Args[2:]...)
	os.Exit(cmd.main(args))
}
