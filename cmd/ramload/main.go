// ramload receives a fixed-size program image over the UART into RAM,
// signalling progress on the LED.
package main

import (
	"context"

	"github.com/robotalks/picoload/pkg/l0/status"
	"github.com/robotalks/picoload/pkg/l0/uart"
)

func main() {
	dev := openDevice()
	loader := uart.NewLoader(dev.receiver(), status.NewIndicator(dev.led, nil))
	loader.Notifier = dev.notifier
	dev.run(func(ctx context.Context) error {
		return loader.RunWith(ctx, dev.image)
	})
}
