// uartecho echoes every byte received on the UART and toggles the LED
// per byte. It is used to check wiring and baud rate before loading.
package main

import (
	"context"

	"github.com/robotalks/picoload/pkg/l0/status"
	"github.com/robotalks/picoload/pkg/l0/uart"
)

func main() {
	dev := openDevice()
	echo := uart.NewEcho(dev.receiver(), status.NewIndicator(dev.led, nil))
	echo.Handler = dev.handler
	dev.run(func(ctx context.Context) error {
		return echo.Run(ctx)
	})
}
