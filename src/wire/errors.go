package wire

import (
	"encoding/json"
	"fmt"
)

// Protocol error codes. Codes below 1000 are reserved by the harness; the
// ones listed here are the codes this framework produces or interprets.
const (
	Timeout                = 0
	NotSupported           = 10
	TemporarilyUnavailable = 11
	MalformedRequest       = 12
	Crash                  = 13
	Abort                  = 14
	KeyDoesNotExist        = 20
	KeyAlreadyExists       = 21
	PreconditionFailed     = 22
	TxnConflict            = 30
)

var errorCodeText = map[int]string{
	Timeout:                "timeout",
	NotSupported:           "not supported",
	TemporarilyUnavailable: "temporarily unavailable",
	MalformedRequest:       "malformed request",
	Crash:                  "crash",
	Abort:                  "abort",
	KeyDoesNotExist:        "key does not exist",
	KeyAlreadyExists:       "key already exists",
	PreconditionFailed:     "precondition failed",
	TxnConflict:            "txn conflict",
}

// ErrorCodeText returns the standard description for a protocol error code.
func ErrorCodeText(code int) string {
	if text, ok := errorCodeText[code]; ok {
		return text
	}
	return fmt.Sprintf("error %d", code)
}

// ErrorCode returns the protocol code carried by err, or -1 if err is not an
// RPCError.
func ErrorCode(err error) int {
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr.Code
	}
	return -1
}

// RPCError is a protocol-level error. Returning one from a handler produces
// an error reply carrying the code, rather than a crash.
type RPCError struct {
	Code int
	Text string
}

// NewRPCError returns an RPCError with the given code. An empty text falls
// back to the code's standard description.
func NewRPCError(code int, text string) *RPCError {
	if text == "" {
		text = ErrorCodeText(code)
	}
	return &RPCError{Code: code, Text: text}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Text)
}

// MarshalJSON renders the error as an error reply body.
func (e *RPCError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": "error",
		"code": e.Code,
		"text": e.Text,
	})
}
