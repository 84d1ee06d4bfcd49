//go:build !baremetal

package main

import (
	"context"
	"flag"
	"io/ioutil"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/picoload/pkg/framework"
	"github.com/robotalks/picoload/pkg/l0/hal"
	"github.com/robotalks/picoload/pkg/l0/uart"
	"github.com/robotalks/picoload/pkg/l1/env"
	"github.com/robotalks/picoload/pkg/l1/link"
	"github.com/robotalks/picoload/pkg/l1/port"
)

var outFile string

type device struct {
	port     *port.Port
	led      hal.Pin
	image    *uart.Image
	notifier uart.StateNotifier
	timeout  time.Duration
}

func init() {
	env.SetupFlags()
	flag.StringVar(&outFile, "o", outFile, "Write the received image to file")
}

func openDevice() *device {
	flag.Parse()
	conf := env.NewConfig()
	d := &device{
		port:    conf.MustOpenPort(),
		led:     &port.LogPin{Name: "LED"},
		image:   uart.NewImage(uart.ProgramSize),
		timeout: conf.Timeout,
	}
	d.notifier = uart.StateChangedFunc(func(ctx context.Context, state uart.State) {
		if state == uart.StateReadyBlink {
			glog.Infof("loading %s", d.image)
		}
		glog.Infof("loader %s (%d/%d bytes)", state, d.image.Len(), d.image.Cap())
		if state == uart.StateSuccess {
			d.save()
		}
	})
	return d
}

func (d *device) receiver() uart.Receiver {
	return uart.Receiver{Port: d.port, Timeout: d.timeout, PollInterval: time.Millisecond}
}

func (d *device) save() {
	if glog.V(1) {
		glog.Infof("image: %s", link.FormatHex(d.image.Bytes()))
	}
	if outFile == "" {
		return
	}
	if err := ioutil.WriteFile(outFile, d.image.Bytes(), 0644); err != nil {
		glog.Errorf("write %s: %v", outFile, err)
		return
	}
	glog.Infof("image written to %s", outFile)
}

// run keeps blinking the outcome until interrupted.
func (d *device) run(fn func(context.Context) error) {
	defer d.port.Close()
	err := fx.NewRunner().HandleSignals().Go(
		fx.NamedRun("port", d.port),
		fx.NamedRun("loader", fx.RunFunc(fn)),
	).Wait()
	if err != nil {
		glog.Exitln(err)
	}
}
