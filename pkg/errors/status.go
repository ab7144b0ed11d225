// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package errors

// Status is a coarse error classification, loosely modeled on HTTP status
// codes. Statuses below 400 are not errors.
type Status uint64

const (
	OK Status = 200

	BadRequest   Status = 400
	Unauthorized Status = 401
	NotFound     Status = 404
	Conflict     Status = 409

	InternalError Status = 500
	UnknownError  Status = 501
	EncodingError Status = 502
	FatalError    Status = 503
	NotReady      Status = 504
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case BadRequest:
		return "bad request"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	case InternalError:
		return "internal error"
	case UnknownError:
		return "unknown error"
	case EncodingError:
		return "encoding error"
	case FatalError:
		return "fatal error"
	case NotReady:
		return "not ready"
	}
	return "unknown status"
}

// Success returns true if the status represents success.
func (s Status) Success() bool { return s < 400 }

// IsClientError returns true if the status is a client error.
func (s Status) IsClientError() bool { return s >= 400 && s < 500 }

// IsServerError returns true if the status is a server error.
func (s Status) IsServerError() bool { return s >= 500 }

// IsKnownError returns true if the status is non-zero and not UnknownError.
func (s Status) IsKnownError() bool { return s != 0 && s != UnknownError }

// Error implements error.
func (s Status) Error() string { return s.String() }
