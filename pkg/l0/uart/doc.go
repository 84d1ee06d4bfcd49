// Package uart provides the L0 serial receivers.
package uart

// Two programs are built on this package:
//
// Echo is the bring-up diagnostic. Every byte received toggles the
// status LED and is written back unchanged.
//
// Loader receives a fixed number of bytes into an owned Image and then
// parks in a terminal blink pattern. There is no framing, no length
// prefix and no checksum: the sender and receiver agree on the size
// beforehand. Once the image is complete the loader never consumes
// another byte.
//
// Both poll the peripheral from a single control flow. Waits are
// unbounded unless Receiver.Timeout is set.
