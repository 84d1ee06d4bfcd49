package main

import (
	"github.com/robotalks/picoload/pkg/cli/sh"
	"github.com/robotalks/picoload/pkg/l1/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
