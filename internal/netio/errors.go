package netio

import "errors"

var (
	// ErrSocketClosed is returned by socket operations once Close has run.
	ErrSocketClosed = errors.New("netio: socket closed")

	// ErrUnsupportedMode names a socket mode this build does not
	// implement. No function in this package returns it.
	ErrUnsupportedMode = errors.New("netio: unsupported socket mode")

	// ErrShortWrite names a raw-socket write that sent fewer bytes than
	// it was handed. No function in this package returns it: RawSocket.Send
	// reports only the error from sendto.
	ErrShortWrite = errors.New("netio: short write to raw socket")
)
