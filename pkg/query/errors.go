package query

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// ErrorKind classifies why a command failed
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	// KindNullIterator: a sequence was dereferenced while not positioned on an element
	KindNullIterator
	// KindPropertyType: unknown or mismatched value tag or operator
	KindPropertyType
	// KindInvalidReference: reference id not registered in the current transaction
	KindInvalidReference
	// KindMalformedCommand: structurally invalid command or batch
	KindMalformedCommand
	// KindStore: error raised by the graph store
	KindStore
	// KindAborted: the transaction was rolled back because of another command or by request
	KindAborted
)

func (k ErrorKind) String() string {
	return k.Code().String()
}

// Code maps the kind to its wire error code
func (k ErrorKind) Code() wire.ErrorCode {
	switch k {
	case KindNone:
		return wire.CodeNone
	case KindNullIterator:
		return wire.CodeNullIterator
	case KindPropertyType:
		return wire.CodePropertyType
	case KindInvalidReference:
		return wire.CodeInvalidReference
	case KindMalformedCommand:
		return wire.CodeMalformedCommand
	case KindAborted:
		return wire.CodeAborted
	default:
		return wire.CodeStore
	}
}

// Sentinel errors, one per kind, for errors.Is checks
var (
	ErrNullIterator     = errors.New("sequence is not positioned on an element")
	ErrPropertyType     = errors.New("unsupported property type")
	ErrInvalidReference = errors.New("invalid reference")
	ErrMalformedCommand = errors.New("malformed command")
	ErrAborted          = errors.New("transaction aborted")
)

var kindSentinels = map[ErrorKind]error{
	KindNullIterator:     ErrNullIterator,
	KindPropertyType:     ErrPropertyType,
	KindInvalidReference: ErrInvalidReference,
	KindMalformedCommand: ErrMalformedCommand,
	KindAborted:          ErrAborted,
}

// Error is a classified command failure
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "QueryNode"
	Ref  int    // reference id involved, 0 if none
	Msg  string
	Err  error // underlying cause
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		if sentinel, ok := kindSentinels[e.Kind]; ok {
			msg = sentinel.Error()
		} else {
			msg = e.Kind.String()
		}
	}
	if e.Ref != 0 {
		msg = fmt.Sprintf("%s (ref %d)", msg, e.Ref)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

func newError(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, op string, err error) *Error {
	var qe *Error
	if errors.As(err, &qe) {
		if qe.Op == "" {
			qe.Op = op
		}
		return qe
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies any error. Errors of unknown origin are store errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if errors.Is(err, wire.ErrMalformed) {
		return KindMalformedCommand
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindStore
}
