//go:build baremetal

package main

import (
	"context"
	"machine"

	"github.com/robotalks/picoload/pkg/l0/hal"
	"github.com/robotalks/picoload/pkg/l0/uart"
)

// program is the static destination of the image.
var program [uart.ProgramSize]byte

type device struct {
	port     hal.Port
	led      hal.Pin
	image    *uart.Image
	notifier uart.StateNotifier
}

func openDevice() *device {
	if err := hal.ConfigureUART(machine.UART0, uart.BaudRate, machine.UART0_TX_PIN, machine.UART0_RX_PIN); err != nil {
		for {
		}
	}
	d := &device{
		port:  machine.UART0,
		led:   hal.ConfigureOutput(machine.LED),
		image: uart.ImageOn(program[:]),
	}
	// Reports where the image lands as one line before the ready blink.
	d.notifier = uart.StateChangedFunc(func(ctx context.Context, state uart.State) {
		if state == uart.StateReadyBlink {
			machine.UART0.Write([]byte(d.image.String() + "\r\n"))
		}
	})
	return d
}

func (d *device) receiver() uart.Receiver {
	return uart.Receiver{Port: d.port}
}

// run never returns, the loader blinks the outcome until reset.
func (d *device) run(fn func(context.Context) error) {
	fn(context.Background())
	for {
	}
}
