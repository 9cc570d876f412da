// Package wasmguest is the guest side of the wasm bridge. A front-end built
// with GOOS=wasip1 uses NewClient to send sqlite-store commands to the host
// module registered by wasmhost.
package wasmguest
