// loadsend sends a program image to a device running ramload.
// Without -file it sends the test pattern 00..FF.
package main

import (
	"context"
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/picoload/pkg/framework"
	"github.com/robotalks/picoload/pkg/l1/env"
	"github.com/robotalks/picoload/pkg/l1/link"
)

var (
	file     string
	settle   = link.DefaultSettle
	oversize bool
)

func init() {
	env.SetupFlags()
	flag.StringVar(&file, "file", file, "Image to send instead of the test pattern")
	flag.DurationVar(&settle, "settle", settle, "Wait for the device to boot after opening the port")
	flag.BoolVar(&oversize, "oversize", oversize, "Allow images larger than the loader accepts")
}

func main() {
	flag.Parse()
	conf := env.NewConfig()
	p := conf.MustOpenPort()
	defer p.Close()

	sender := link.NewSender(p)
	sender.Settle, sender.AllowOversize = settle, oversize

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("send", fx.RunFunc(func(ctx context.Context) error {
		var n int
		var err error
		if file != "" {
			n, err = sender.SendFile(ctx, file)
		} else {
			n, err = sender.SendPattern(ctx)
		}
		if err == nil {
			glog.Infof("sent %d bytes", n)
		}
		return err
	})))
	if err := runner.Wait(); err != nil {
		glog.Exitln(err)
	}
}
