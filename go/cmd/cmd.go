package cmd

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	ukern "github.com/lunixbochs/ukern/go"
	"github.com/lunixbochs/ukern/go/cpu"
	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/loader"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
)

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// KernelCmd parses the common kernel flags, stages files into a fresh file
// system, and boots a machine.
type KernelCmd struct {
	Config *models.Config
	Flags  *flag.FlagSet

	SetupFlags func() error
	MakeLoader func(fs *filesys.MemFS) proc.Loader

	Machine *ukern.Machine
}

func NewKernelCmd() *KernelCmd {
	return &KernelCmd{Flags: flag.NewFlagSet("cli", flag.ExitOnError)}
}

// printFlags writes one entry per flag, wrapping usage text at 80 columns.
func printFlags(w io.Writer, flags []*flag.Flag) {
	wname, wdef := 0, 0
	for _, f := range flags {
		if len(f.Name) > wname {
			wname = len(f.Name)
		}
		if len(f.DefValue) > wdef {
			wdef = len(f.DefValue)
		}
	}
	indent := wname + wdef + 7
	for _, f := range flags {
		def := ""
		if f.DefValue != "" && f.DefValue != "[]" {
			def = "(" + f.DefValue + ")"
		}
		line := fmt.Sprintf("  -%-*s %-*s ", wname, f.Name, wdef+2, def)
		col := len(line)
		for i, word := range strings.Fields(f.Usage) {
			if i > 0 && col+1+len(word) > 80 {
				line += "\n" + strings.Repeat(" ", indent)
				col = indent
			} else if i > 0 {
				line += " "
				col++
			}
			line += word
			col += len(word)
		}
		fmt.Fprintln(w, line)
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err, with a stack trace when it carries one.
func (c *KernelCmd) PrintError(err error) {
	w := os.Stderr
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	var st stackTracer
	for e := err; e != nil; {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
		cause, ok := e.(interface{ Cause() error })
		if !ok {
			break
		}
		e = cause.Cause()
	}
	if st == nil {
		return
	}
	var frames [][2]string
	width := 0
	for _, f := range st.StackTrace() {
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)
		if len(fileline) > width {
			width = len(fileline)
		}
		frames = append(frames, [2]string{fileline, method})
		if method == "main" {
			break
		}
	}
	for _, f := range frames {
		fmt.Fprintf(w, "%s%s | %s()\n", f[0], strings.Repeat(" ", width-len(f[0])), f[1])
	}
}

// Put stages a host file into fs under name. Files ending in .s are
// assembled for loader.FlatBase first.
func Put(fs *filesys.MemFS, name, path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading host file")
	}
	if filepath.Ext(path) == ".s" {
		asm, err := cpu.NewAssembler()
		if err != nil {
			return err
		}
		defer asm.Close()
		if data, err = asm.Asm(string(data), loader.FlatBase); err != nil {
			return errors.Wrapf(err, "assembling %s", path)
		}
	}
	return fs.Put(name, data)
}

func (c *KernelCmd) Run(argv []string) int {
	fs := c.Flags
	strace := fs.Bool("strace", false, "trace system calls")
	strsize := fs.Int("strsize", 30, "limit -strace'd strings to length (0 disables)")
	verbose := fs.Bool("v", false, "verbose kernel logging")
	disk := fs.Uint64("disk", 1<<20, "file system capacity in bytes (0 is unbounded)")
	outfile := fs.String("o", "", "redirect trace and log output to file (default stderr)")
	var puts strslice
	fs.Var(&puts, "put", "copy a host file into the file system as name=path (repeatable; .s files are assembled)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <program> [args...]\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		printFlags(os.Stderr, flags)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	fs.Parse(argv[1:])
	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		return 1
	}

	var output io.Writer = colorable.NewColorableStderr()
	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if *outfile != "" {
		f, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			c.PrintError(errors.Wrap(err, "opening output file"))
			return 1
		}
		defer f.Close()
		output, color = f, false
	}
	c.Config = &models.Config{
		Color:    color,
		Strsize:  *strsize,
		TraceSys: *strace,
		Verbose:  *verbose,
		DiskSize: *disk,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Output:   output,
	}
	log.Setup(output, *verbose, color)

	mfs := filesys.NewMemFS(c.Config.DiskSize)
	for _, put := range puts {
		split := strings.SplitN(put, "=", 2)
		if len(split) != 2 || split[0] == "" {
			c.PrintError(errors.Errorf("bad -put %q: want name=path", put))
			return 1
		}
		if err := Put(mfs, split[0], split[1]); err != nil {
			c.PrintError(errors.Wrapf(err, "-put %s", split[0]))
			return 1
		}
		log.L.Debug("staged file", "name", split[0], "path", split[1])
	}

	c.Machine = ukern.NewMachine(c.Config, mfs, c.MakeLoader(mfs))
	status, err := c.Machine.Run(strings.Join(args, " "))
	if err != nil {
		c.PrintError(err)
		return 1
	}
	return int(status)
}
