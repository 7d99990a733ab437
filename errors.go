package pbjournal

import (
	"errors"
	"fmt"

	"github.com/reoring/pbjournal/descriptor"
	"github.com/reoring/pbjournal/i18n"
	"github.com/reoring/pbjournal/wire"
)

// Code classifies the outcome of an operation.
type Code uint8

const (
	CodeNone Code = iota
	// CodeInvalid means the handle is unusable; operate on it no further.
	CodeInvalid
	CodeAlloc
	CodeOffset
	CodeUnderrun
	CodeOverflow
	CodeVarint
	CodeDescriptor
	// CodeAbsent reports a missing value the caller may replace by a default.
	CodeAbsent
	// CodeEOM is the terminal state of an unfiltered cursor; it is not a
	// failure.
	CodeEOM
)

var codeNames = [...]string{
	CodeNone:       "none",
	CodeInvalid:    "invalid",
	CodeAlloc:      "alloc",
	CodeOffset:     "offset",
	CodeUnderrun:   "underrun",
	CodeOverflow:   "overflow",
	CodeVarint:     "varint",
	CodeDescriptor: "descriptor",
	CodeAbsent:     "absent",
	CodeEOM:        "eom",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Sentinel errors, one per code. The wire-level ones are shared with the
// wire package so that codec failures propagate unchanged.
var (
	ErrInvalid    = errors.New("pbjournal: invalid handle")
	ErrAlloc      = errors.New("pbjournal: allocation failed")
	ErrOffset     = wire.ErrOffset
	ErrUnderrun   = wire.ErrUnderrun
	ErrOverflow   = wire.ErrOverflow
	ErrVarint     = wire.ErrVarint
	ErrDescriptor = errors.New("pbjournal: field not in descriptor")
	ErrAbsent     = errors.New("pbjournal: value absent")
	ErrEOM        = errors.New("pbjournal: end of message")
)

var sentinels = []struct {
	err  error
	code Code
}{
	{ErrInvalid, CodeInvalid},
	{ErrAlloc, CodeAlloc},
	{ErrOffset, CodeOffset},
	{ErrUnderrun, CodeUnderrun},
	{ErrOverflow, CodeOverflow},
	{ErrVarint, CodeVarint},
	{ErrDescriptor, CodeDescriptor},
	{wire.ErrUnsupported, CodeDescriptor},
	{descriptor.ErrSchema, CodeDescriptor},
	{ErrAbsent, CodeAbsent},
	{ErrEOM, CodeEOM},
}

// Error describes a failed operation.
type Error struct {
	Code Code
	// Op names the operation, for example "put" or "cursor.next".
	Op string
	// Tag is the field number involved, 0 when not applicable.
	Tag uint32
	// Offset is the byte offset in the journal, -1 when unknown.
	Offset int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Tag != 0 && e.Offset >= 0:
		return fmt.Sprintf("pbjournal: %s tag %d at offset %d: %s", e.Op, e.Tag, e.Offset, msg)
	case e.Tag != 0:
		return fmt.Sprintf("pbjournal: %s tag %d: %s", e.Op, e.Tag, msg)
	default:
		return fmt.Sprintf("pbjournal: %s: %s", e.Op, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Code, or the sentinel of e's code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	for _, s := range sentinels {
		if s.code == e.Code && s.err == target {
			return true
		}
	}
	return false
}

// Message renders the error through a translator, keeping the location.
func (e *Error) Message(tr i18n.Translator) string {
	data := map[string]string{"op": e.Op}
	if e.Tag != 0 {
		data["tag"] = fmt.Sprint(e.Tag)
	}
	if e.Offset >= 0 {
		data["offset"] = fmt.Sprint(e.Offset)
	}
	return tr.Message(e.Code.String(), data)
}

// CodeOf classifies err. nil maps to CodeNone; errors outside the taxonomy
// map to CodeInvalid.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeInvalid
}

// AsError extracts an *Error using errors.As.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(op string, tag uint32, off int, err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodeOf(err), Op: op, Tag: tag, Offset: off, Err: err}
}
