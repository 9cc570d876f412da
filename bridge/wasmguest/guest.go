//go:build wasip1

package wasmguest

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/tomyedwab/sqlitestore/bridge"
)

//go:wasmimport env sqlite_store_invoke
func sqlite_store_invoke(reqPtr, reqLen, destPtr uint32) int32

var (
	byteHandles    = make(map[uint32][]byte)
	nextByteHandle = uint32(1)
)

// AllocBytes reserves a buffer the host can write a response into. The result
// packs the buffer handle in the high 32 bits and its address in the low 32.
//
//go:wasmexport alloc_bytes
func AllocBytes(size uint32) uint64 {
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	handle := nextByteHandle
	byteHandles[handle] = buf
	nextByteHandle++
	return uint64(handle)<<32 | uint64(uintptr(unsafe.Pointer(&buf[0])))
}

// takeBytes returns the first size bytes of a buffer and releases it.
func takeBytes(handle uint32, size uint32) ([]byte, bool) {
	buf, ok := byteHandles[handle]
	if !ok {
		return nil, false
	}
	delete(byteHandles, handle)
	if int(size) > len(buf) {
		size = uint32(len(buf))
	}
	return buf[:size:size], true
}

func call(ctx context.Context, requestPayload []byte) ([]byte, error) {
	if len(requestPayload) == 0 {
		return nil, fmt.Errorf("empty request")
	}
	var handle uint32
	size := sqlite_store_invoke(
		uint32(uintptr(unsafe.Pointer(&requestPayload[0]))),
		uint32(len(requestPayload)),
		uint32(uintptr(unsafe.Pointer(&handle))),
	)
	runtime.KeepAlive(requestPayload)
	if size == 0 {
		return nil, nil
	}
	if handle == 0 {
		return nil, fmt.Errorf("sqlite_store_invoke failed without a response")
	}

	n := size
	if n < 0 {
		n = -n
	}
	payload, ok := takeBytes(handle, uint32(n))
	if !ok {
		return nil, fmt.Errorf("sqlite_store_invoke returned unknown buffer %d", handle)
	}
	if size < 0 {
		return nil, fmt.Errorf("sqlite_store_invoke returned error: %s", string(payload))
	}
	return payload, nil
}

// HostFunc returns the transport that calls the host import.
func HostFunc() bridge.HostFunc {
	return call
}

// NewClient returns a bridge client using the host import.
func NewClient(options ...bridge.Option) *bridge.Client {
	return bridge.NewClient(HostFunc(), options...)
}
