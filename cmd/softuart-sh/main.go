package main

import (
	"github.com/robotalks/softuart/pkg/cli/sh"
	"github.com/robotalks/softuart/pkg/env"
	"github.com/robotalks/softuart/pkg/uart"
)

//go-build: CGO_ENABLED=0

func init() {
	uart.SetupFlags()
	env.SetupFlags()
}

func main() {
	sh.Main()
}
