package lookup

import (
	"context"
	"errors"
)

// Lookup errors. NotFound, ServFail and Refused mean a nameserver answered;
// Timeout and Unreachable mean nothing came back at all.
var (
	ErrNotFound    = errors.New("dns: no such record")
	ErrServFail    = errors.New("dns: server failure")
	ErrRefused     = errors.New("dns: query refused")
	ErrTimeout     = errors.New("dns: query timed out")
	ErrUnreachable = errors.New("dns: nameserver unreachable")

	// ErrResolverUnavailable is matched by the error ResolveAll returns when
	// no lookup of a scan got any DNS response.
	ErrResolverUnavailable = errors.New("dns: resolver unavailable")
)

// Answered reports whether err (possibly nil) came with a DNS response.
// Ordinary misses are answered; transport failures are not.
func Answered(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrServFail) ||
		errors.Is(err, ErrRefused)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
