// Package wasmhost exposes a bridge.Handler to a WebAssembly front-end running
// in wazero.
//
// The guest imports env.sqlite_store_invoke(reqPtr, reqLen, destPtr) and calls
// it with an encoded request envelope. The host runs the request, copies the
// response into a buffer obtained from the guest's alloc_bytes export and
// stores that buffer's handle at destPtr. The return value is the response
// size, negated when the buffer holds a host failure text instead of an
// envelope.
package wasmhost

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tomyedwab/sqlitestore/bridge"
)

const (
	ModuleName     = "env"
	InvokeFunction = "sqlite_store_invoke"
	AllocFunction  = "alloc_bytes"
)

// memory is the part of api.Memory the host touches.
type memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	WriteUint32Le(offset, v uint32) bool
}

// allocFunc reserves size bytes in the guest and returns the buffer handle and
// its address.
type allocFunc func(ctx context.Context, size uint32) (handle uint32, ptr uint32, err error)

type host struct {
	handler bridge.Handler
	logger  *slog.Logger
}

// Instantiate registers the env host module on r. It must be called before
// the guest module is instantiated.
func Instantiate(ctx context.Context, r wazero.Runtime, h bridge.Handler, logger *slog.Logger) (api.Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hst := &host{handler: h, logger: logger}
	return r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().WithFunc(hst.invokeFromGuest).Export(InvokeFunction).
		Instantiate(ctx)
}

func (h *host) invokeFromGuest(ctx context.Context, m api.Module, reqPtr, reqLen, destPtr uint32) int32 {
	return h.invoke(ctx, m.Memory(), moduleAllocator(m), reqPtr, reqLen, destPtr)
}

func moduleAllocator(m api.Module) allocFunc {
	return func(ctx context.Context, size uint32) (uint32, uint32, error) {
		alloc := m.ExportedFunction(AllocFunction)
		if alloc == nil {
			return 0, 0, fmt.Errorf("guest does not export %s", AllocFunction)
		}
		results, err := alloc.Call(ctx, uint64(size))
		if err != nil {
			return 0, 0, err
		}
		if len(results) != 1 {
			return 0, 0, fmt.Errorf("%s returned %d results, expected 1", AllocFunction, len(results))
		}
		return uint32(results[0] >> 32), uint32(results[0]), nil
	}
}

func (h *host) invoke(ctx context.Context, mem memory, alloc allocFunc, reqPtr, reqLen, destPtr uint32) int32 {
	view, ok := mem.Read(reqPtr, reqLen)
	if !ok {
		h.logger.Error("Guest request out of range", "ptr", reqPtr, "len", reqLen)
		return h.deliver(ctx, mem, alloc, destPtr, []byte("request out of range"), true)
	}
	// The view is invalidated if alloc grows guest memory.
	request := bytes.Clone(view)

	response, err := bridge.Serve(ctx, h.handler, request)
	if err != nil {
		h.logger.Error("Failed to serve guest request", "error", err)
		return h.deliver(ctx, mem, alloc, destPtr, []byte(err.Error()), true)
	}
	return h.deliver(ctx, mem, alloc, destPtr, response, false)
}

// deliver copies data into a fresh guest buffer. If no buffer can be obtained
// the handle at destPtr is left untouched and -1 is returned.
func (h *host) deliver(ctx context.Context, mem memory, alloc allocFunc, destPtr uint32, data []byte, failed bool) int32 {
	size := int32(len(data))
	if failed {
		size = -size
	}
	if len(data) == 0 {
		return size
	}

	handle, ptr, err := alloc(ctx, uint32(len(data)))
	if err != nil {
		h.logger.Error("Failed to allocate guest buffer", "size", len(data), "error", err)
		return -1
	}
	if !mem.Write(ptr, data) {
		h.logger.Error("Guest buffer out of range", "ptr", ptr, "size", len(data))
		return -1
	}
	if !mem.WriteUint32Le(destPtr, handle) {
		h.logger.Error("Guest destination out of range", "ptr", destPtr)
		return -1
	}
	return size
}
