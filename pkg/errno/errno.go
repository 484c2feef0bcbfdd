package errno

import (
	"errors"
	"fmt"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Err is an Errno carrying the detail of one occurrence.
// errors.Is(err, ErrUnknownWallet) matches on the code, so details never break comparisons.
type Err struct {
	Errno
	Detail string
	Cause  error
}

func (e *Err) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

func (e *Err) Unwrap() error {
	return e.Cause
}

func (e *Err) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == e.Code
	case *Errno:
		return t.Code == e.Code
	}
	return false
}

// New attaches a formatted detail to a code.
func New(code Errno, format string, args ...any) error {
	return &Err{Errno: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause and a formatted detail to a code.
func Wrap(code Errno, cause error, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	if cause != nil {
		detail += ": " + cause.Error()
	}
	return &Err{Errno: code, Detail: detail, Cause: cause}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var detailed *Err
	if errors.As(err, &detailed) {
		return detailed.Code, detailed.Error()
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalError.Code, err.Error()
	}
}

// Common Errors
var (
	OK            = Errno{Code: 0, Message: "Success"}
	InternalError = Errno{Code: 10001, Message: "Internal error"}
	ErrReadFile   = Errno{Code: 10002, Message: "Error occurred while reading the input file"}
	ErrWriteFile  = Errno{Code: 10003, Message: "Error occurred while writing the output file"}
	ErrConfig     = Errno{Code: 10004, Message: "Configuration error"}
)

// Registry and batch errors (30100+)
var (
	ErrMalformedMetadata = Errno{Code: 30101, Message: "Malformed wallet metadata"}
	ErrUnknownWallet     = Errno{Code: 30102, Message: "Unknown wallet"}
	ErrMalformedBatch    = Errno{Code: 30103, Message: "Malformed transaction batch"}
)

// Signature errors (30200+)
var (
	ErrInvalidSignature = Errno{Code: 30201, Message: "Invalid signature"}
	ErrHashMismatch     = Errno{Code: 30202, Message: "Safe transaction hash mismatch"}
)

// Output errors (30300+)
var (
	ErrIncompleteTransaction = Errno{Code: 30301, Message: "Incomplete transaction"}
)

// Signer errors (30400+)
var (
	ErrSignerFailed = Errno{Code: 30401, Message: "Signer failed"}
	ErrKeystore     = Errno{Code: 30402, Message: "Keystore error"}
)
