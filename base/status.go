// Package base holds the data types shared by every other package in this
// module: the Status error taxonomy, the byte-wise comparator contract, and
// the internal-key encoding.
package base

// Code is one of the six outcomes an operation in this module can report.
type Code int

const (
	CodeOK Code = iota
	CodeNotFound
	CodeCorruption
	CodeNotSupported
	CodeInvalidArgument
	CodeIOError
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotFound:
		return "NotFound"
	case CodeCorruption:
		return "Corruption"
	case CodeNotSupported:
		return "Not implemented"
	case CodeInvalidArgument:
		return "Invalid argument"
	case CodeIOError:
		return "IO error"
	default:
		return "Unknown code"
	}
}

// Status is the error type used throughout this module in place of a plain
// error, carrying a Code plus an optional message and secondary message
// joined by ": ".
type Status struct {
	code Code
	msg  string
}

// OK is the zero-value, successful status.
var OK = Status{code: CodeOK}

func newStatus(code Code, msg, msg2 string) Status {
	if msg2 != "" {
		msg = msg + ": " + msg2
	}
	return Status{code: code, msg: msg}
}

func NotFound(msg string, msg2 ...string) Status        { return newStatus(CodeNotFound, msg, join(msg2)) }
func Corruption(msg string, msg2 ...string) Status       { return newStatus(CodeCorruption, msg, join(msg2)) }
func NotSupported(msg string, msg2 ...string) Status     { return newStatus(CodeNotSupported, msg, join(msg2)) }
func InvalidArgument(msg string, msg2 ...string) Status  { return newStatus(CodeInvalidArgument, msg, join(msg2)) }
func IOError(msg string, msg2 ...string) Status          { return newStatus(CodeIOError, msg, join(msg2)) }

func join(msg2 []string) string {
	if len(msg2) == 0 {
		return ""
	}
	return msg2[0]
}

// Ok reports whether the status represents success.
func (s Status) Ok() bool { return s.code == CodeOK }

func (s Status) Code() Code { return s.code }

func (s Status) IsNotFound() bool        { return s.code == CodeNotFound }
func (s Status) IsCorruption() bool      { return s.code == CodeCorruption }
func (s Status) IsNotSupported() bool    { return s.code == CodeNotSupported }
func (s Status) IsInvalidArgument() bool { return s.code == CodeInvalidArgument }
func (s Status) IsIOError() bool         { return s.code == CodeIOError }

// Error implements the error interface so a Status can be returned and
// compared wherever idiomatic Go code expects one.
func (s Status) Error() string {
	if s.Ok() {
		return "OK"
	}
	if s.msg == "" {
		return s.code.String()
	}
	return s.code.String() + ": " + s.msg
}

// AsError converts a non-OK status into an error, or nil if the status is OK.
// Using this at package boundaries keeps "if err != nil" idiomatic while the
// internal plumbing passes Status by value.
func (s Status) AsError() error {
	if s.Ok() {
		return nil
	}
	return s
}
