package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Kind groups failures by where they originated.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRPC is a JSON-RPC error returned by the node.
	KindRPC
	KindTransport
	KindRateLimited
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindRPC:
		return "rpc"
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// defaultRetryAfter is used for HTTP 429 responses; HTTPError does not carry headers.
const defaultRetryAfter = time.Second

// Error is the normalized failure returned by every Network call. Callers
// classify on Kind and Message only and never on provider specific shapes.
type Error struct {
	Kind       Kind
	Code       int
	Message    string
	RetryAfter time.Duration

	err error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error %d: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Normalize converts any error returned by the rpc client into an *Error.
// It returns nil for a nil error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var ne *Error
	if errors.As(err, &ne) {
		return ne
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		e := &Error{Kind: KindTransport, Code: httpErr.StatusCode, Message: httpErr.Status, err: err}
		if len(httpErr.Body) > 0 {
			e.Message = fmt.Sprintf("%s: %s", httpErr.Status, string(httpErr.Body))
		}
		if httpErr.StatusCode == http.StatusTooManyRequests {
			e.Kind = KindRateLimited
			e.RetryAfter = defaultRetryAfter
		}
		return e
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &Error{Kind: KindRPC, Code: rpcErr.ErrorCode(), Message: rpcErr.Error(), err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: err.Error(), err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Message: err.Error(), err: err}
		}
		return &Error{Kind: KindTransport, Message: err.Error(), err: err}
	}

	return &Error{Kind: KindUnknown, Message: err.Error(), err: err}
}
