package asm

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/lunixbochs/ukern/go/cmd"
	"github.com/lunixbochs/ukern/go/cpu"
	"github.com/lunixbochs/ukern/go/loader"
)

func Main(args []string) int {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	base := fs.Uint64("base", loader.FlatBase, "load address to assemble for")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <in.s> <out.bin>\n\nOptions:\n", args[0])
		fs.PrintDefaults()
	}
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	src, err := ioutil.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	a, err := cpu.NewAssembler()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer a.Close()
	out, err := a.Asm(string(src), *base)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := ioutil.WriteFile(fs.Arg(1), out, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func init() { cmd.Register("asm", "assemble a flat x86 program", Main) }
