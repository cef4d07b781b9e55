// Package apperr collects the typed error kinds the core reacts to by name,
// rather than by matching on error strings.
package apperr

import "fmt"

// ChainUnreachable means the chain node's RPC endpoint could not be reached
// or returned a transport-level failure. The caller should retry on the next
// tick without mutating any state.
type ChainUnreachable struct {
	Op  string
	Err error
}

func (e *ChainUnreachable) Error() string {
	return fmt.Sprintf("chain unreachable during %s: %v", e.Op, e.Err)
}

func (e *ChainUnreachable) Unwrap() error { return e.Err }

// HeightUnavailable means no tipset exists yet at the requested height.
type HeightUnavailable struct {
	Height int64
}

func (e *HeightUnavailable) Error() string {
	return fmt.Sprintf("no tipset available at height %d", e.Height)
}

// NotIdAddress means an address resolved to something other than the id
// protocol, where an id address was required.
type NotIdAddress struct {
	Addr string
}

func (e *NotIdAddress) Error() string {
	return fmt.Sprintf("address %s did not resolve to an id address", e.Addr)
}

// MempoolRejected wraps the reason the node refused to admit a message.
type MempoolRejected struct {
	Reason string
}

func (e *MempoolRejected) Error() string {
	return fmt.Sprintf("mempool rejected message: %s", e.Reason)
}

// BadReceipt means a message landed on chain with a non-zero exit code.
type BadReceipt struct {
	Cid      string
	ExitCode int64
}

func (e *BadReceipt) Error() string {
	return fmt.Sprintf("message %s exited with code %d", e.Cid, e.ExitCode)
}

// CborDecode means a CBOR payload did not match the expected tuple shape.
type CborDecode struct {
	Reason string
}

func (e *CborDecode) Error() string {
	return fmt.Sprintf("cbor decode: %s", e.Reason)
}

// CidForm means a byte string did not parse as a well-formed CID.
type CidForm struct {
	Reason string
}

func (e *CidForm) Error() string {
	return fmt.Sprintf("malformed cid: %s", e.Reason)
}

// PersistenceFailure means a durable-state write-then-rename failed. Readers
// will continue to observe the prior durable document.
type PersistenceFailure struct {
	Path string
	Err  error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

// ConfigMissing means a required environment variable was not set. Fatal at
// startup.
type ConfigMissing struct {
	Key string
}

func (e *ConfigMissing) Error() string {
	return fmt.Sprintf("required configuration %s is not set", e.Key)
}

// SignerFailure means key derivation or signing failed.
type SignerFailure struct {
	Op  string
	Err error
}

func (e *SignerFailure) Error() string {
	return fmt.Sprintf("signer failure during %s: %v", e.Op, e.Err)
}

func (e *SignerFailure) Unwrap() error { return e.Err }
