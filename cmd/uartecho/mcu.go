//go:build baremetal

package main

import (
	"context"
	"machine"

	"github.com/robotalks/picoload/pkg/l0/hal"
	"github.com/robotalks/picoload/pkg/l0/uart"
)

type device struct {
	port    hal.Port
	led     hal.Pin
	handler uart.ByteHandler
}

func openDevice() *device {
	// Errors cannot be reported before the UART works, the LED stays dark.
	if err := hal.ConfigureUART(machine.UART0, uart.BaudRate, machine.UART0_TX_PIN, machine.UART0_RX_PIN); err != nil {
		for {
		}
	}
	return &device{port: machine.UART0, led: hal.ConfigureOutput(machine.LED)}
}

func (d *device) receiver() uart.Receiver {
	return uart.Receiver{Port: d.port}
}

func (d *device) run(fn func(context.Context) error) {
	fn(context.Background())
	for {
	}
}
