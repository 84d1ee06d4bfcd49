//go:build !baremetal

package main

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/picoload/pkg/framework"
	"github.com/robotalks/picoload/pkg/l0/hal"
	"github.com/robotalks/picoload/pkg/l0/uart"
	"github.com/robotalks/picoload/pkg/l1/env"
	"github.com/robotalks/picoload/pkg/l1/port"
)

type device struct {
	port    *port.Port
	led     hal.Pin
	handler uart.ByteHandler
	timeout time.Duration
}

func init() {
	env.SetupFlags()
}

func openDevice() *device {
	flag.Parse()
	conf := env.NewConfig()
	return &device{
		port:    conf.MustOpenPort(),
		led:     &port.LogPin{Name: "LED"},
		timeout: conf.Timeout,
		handler: uart.HandleByteFunc(func(ctx context.Context, b byte) {
			glog.V(1).Infof("echo %02X", b)
		}),
	}
}

func (d *device) receiver() uart.Receiver {
	return uart.Receiver{Port: d.port, Timeout: d.timeout, PollInterval: time.Millisecond}
}

func (d *device) run(fn func(context.Context) error) {
	defer d.port.Close()
	err := fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("port", d.port),
		fx.NamedRun("echo", fx.RunFunc(fn)),
	).Wait()
	if err != nil {
		glog.Exitln(err)
	}
}
