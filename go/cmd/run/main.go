package run

import (
	"github.com/lunixbochs/ukern/go/cmd"
	"github.com/lunixbochs/ukern/go/cpu/unicorn"
	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
)

func Main(args []string) int {
	c := cmd.NewKernelCmd()
	c.MakeLoader = func(fs *filesys.MemFS) proc.Loader {
		return &unicorn.Loader{FS: fs}
	}
	return c.Run(args)
}

func init() { cmd.Register("run", "boot the kernel with an initial program", Main) }
