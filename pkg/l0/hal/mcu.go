//go:build baremetal

package hal

import "machine"

var (
	_ Port = (*machine.UART)(nil)
	_ Pin  = machine.Pin(0)
)

// ConfigureUART configures a UART for 8N1 reception on rx and
// transmission on tx.
func ConfigureUART(uart *machine.UART, baud uint32, tx, rx machine.Pin) error {
	return uart.Configure(machine.UARTConfig{BaudRate: baud, TX: tx, RX: rx})
}

// ConfigureOutput configures pin as a digital output and deasserts it.
func ConfigureOutput(pin machine.Pin) machine.Pin {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return pin
}
