package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/env"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/uart"
)

func init() {
	uart.SetupFlags()
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.NewConfig().MustNewEnv(uart.NewConfig(), uart.LineFlagsSet())
	err := fx.NewRunner().HandleSignals().Go(e.Runnables()...).Wait()
	if cerr := e.Close(); cerr != nil {
		glog.Warningf("close: %v", cerr)
	}
	if err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
}
