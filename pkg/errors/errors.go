// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package errors implements status-coded errors. An Error carries a Status, a
// message, an optional cause, and - when backtraces are enabled - the call
// sites it passed through.
package errors

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// EnableLocationTracking controls whether errors record their call sites.
// Enabled by MERIDIAN_BACKTRACE for diagnostics; off by default because
// runtime.Caller is not free.
var EnableLocationTracking = false

func init() {
	switch os.Getenv("MERIDIAN_BACKTRACE") {
	case "", "0", "false":
	default:
		EnableLocationTracking = true
	}
}

// Error is a status-coded error.
type Error struct {
	Code      Status      `json:"code"`
	Message   string      `json:"message,omitempty"`
	Cause     *Error      `json:"cause,omitempty"`
	CallStack []*CallSite `json:"callStack,omitempty"`
}

// CallSite records a call site of an error.
type CallSite struct {
	FuncName string `json:"funcName"`
	File     string `json:"file"`
	Line     int64  `json:"line"`
}

// With creates an error with a message built from the given values.
func (s Status) With(v ...interface{}) *Error {
	e := s.new(1)
	e.Message = fmt.Sprint(v...)
	return e
}

// WithFormat creates an error with a formatted message. If the format wraps an
// error with %w, the wrapped error becomes the cause.
func (s Status) WithFormat(format string, args ...interface{}) *Error {
	err := fmt.Errorf(format, args...)
	e := s.new(1)
	e.Message = err.Error()
	if u, ok := err.(interface{ Unwrap() error }); ok {
		e.setCause(convert(u.Unwrap()))
	}
	return e
}

// Wrap wraps the given error, recording the call site. Wrap returns nil if err
// is nil.
func (s Status) Wrap(err error) error {
	if err == nil {
		return nil
	}

	// If err is already an Error and we have nothing to add, leave it alone
	if !EnableLocationTracking && !s.IsKnownError() {
		if _, ok := err.(*Error); ok {
			return err
		}
	}

	e := s.new(1)
	e.setCause(convert(err))
	return e
}

func (s Status) new(skip int) *Error {
	e := new(Error)
	e.Code = s
	e.recordCallSite(skip + 2)
	return e
}

func convert(err error) *Error {
	if err == nil {
		return nil
	}
	if e := (*Error)(nil); errors.As(err, &e) {
		return e
	}
	if s := Status(0); errors.As(err, &s) {
		return &Error{Code: s, Message: err.Error()}
	}

	e := &Error{Code: UnknownError, Message: err.Error()}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		e.setCause(convert(u.Unwrap()))
	}
	return e
}

func (e *Error) setCause(c *Error) {
	e.Cause = c
	if c == nil || e.Code.IsKnownError() {
		return
	}
	// Inherit the cause's code
	e.Code = c.Code
}

func (e *Error) recordCallSite(depth int) {
	if !EnableLocationTracking {
		return
	}
	pc, file, line, ok := runtime.Caller(depth)
	if !ok {
		return
	}
	cs := &CallSite{File: file, Line: int64(line)}
	if fn := runtime.FuncForPC(pc); fn != nil {
		cs.FuncName = fn.Name()
	}
	e.CallStack = append(e.CallStack, cs)
}

func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Code
}

func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		if e.Code == t.Code {
			return true
		}
	case Status:
		if e.Code == t {
			return true
		}
	}
	if e.Cause != nil {
		return e.Cause.Is(target)
	}
	return false
}

func (e *Error) Format(f fmt.State, verb rune) {
	if f.Flag('+') {
		_, _ = f.Write([]byte(e.Print()))
	} else {
		_, _ = f.Write([]byte(e.Error()))
	}
}

// Print prints the error, its causal chain, and any recorded call sites.
func (e *Error) Print() string {
	if e.CallStack == nil {
		return e.Error()
	}

	var str []string
	for ; e != nil; e = e.Cause {
		msg := e.Message
		if msg == "" {
			msg = e.Code.String()
		} else if e.Cause != nil {
			msg = strings.TrimSuffix(msg, e.Cause.Message)
		}

		var stack string
		for _, cs := range e.CallStack {
			stack += fmt.Sprintf("%s\n    %s:%d\n", cs.FuncName, cs.File, cs.Line)
		}
		str = append(str, msg+"\n"+stack)
	}
	return strings.Join(str, "\n")
}

// Is calls stdlib errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As calls stdlib errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// Join calls stdlib errors.Join.
func Join(errs ...error) error { return errors.Join(errs...) }

// New calls stdlib errors.New.
func New(text string) error { return errors.New(text) }
