package main

import (
	"github.com/lunixbochs/ukern/go/cmd"

	_ "github.com/lunixbochs/ukern/go/cmd/asm"
	_ "github.com/lunixbochs/ukern/go/cmd/run"
)

func main() { cmd.Main() }
