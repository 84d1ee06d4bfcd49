package uart

import (
	"strconv"
	"unsafe"
)

// Image is the owned destination buffer of a load. It is filled
// sequentially from index 0 and never grows past its capacity.
type Image struct {
	data []byte
	n    int
}

// NewImage allocates an Image holding size bytes.
func NewImage(size int) *Image {
	return &Image{data: make([]byte, size)}
}

// ImageOn uses buf as backing storage. len(buf) is the capacity.
func ImageOn(buf []byte) *Image {
	return &Image{data: buf}
}

// Cap returns the capacity.
func (img *Image) Cap() int {
	return len(img.data)
}

// Len returns the number of bytes written.
func (img *Image) Len() int {
	return img.n
}

// Complete indicates every slot has been written.
func (img *Image) Complete() bool {
	return img.n == len(img.data)
}

// Bytes returns the written part of the image.
func (img *Image) Bytes() []byte {
	return img.data[:img.n]
}

// Addr returns the address of the backing storage, 0 when it is empty.
func (img *Image) Addr() uintptr {
	if len(img.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&img.data[0]))
}

// String implements fmt.Stringer, e.g. "image 256 bytes at 0x20001a40".
func (img *Image) String() string {
	return "image " + strconv.Itoa(img.Cap()) + " bytes at 0x" + strconv.FormatUint(uint64(img.Addr()), 16)
}

// Reset rewinds the write cursor without clearing contents.
func (img *Image) Reset() {
	img.n = 0
}

// append stores b at the cursor. It reports false when full.
func (img *Image) append(b byte) bool {
	if img.n >= len(img.data) {
		return false
	}
	img.data[img.n] = b
	img.n++
	return true
}
