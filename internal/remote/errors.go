package remote

import (
	"context"
	"errors"
	"net"
	"net/url"

	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/httpclient"
)

// Kind is the user-facing category of a failed operation.
type Kind string

const (
	KindNone     Kind = ""
	KindNetwork  Kind = "network"
	KindRejected Kind = "rejected"
	KindUnknown  Kind = "unknown"
)

// User-facing texts for the kinds that carry no server message.
const (
	MsgNoResponse = "No response from the server. Check your connection and try again."
	MsgUnexpected = "Something went wrong. Please try again in a moment."
)

// Classify sorts err into the user-facing taxonomy:
//   - network: no response was received (dial, timeout, open breaker)
//   - rejected: the server answered with a structured message
//   - unknown: everything else, including 5xx without a usable payload
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, httpclient.ErrCircuitOpen) ||
		errors.Is(err, httpclient.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return KindUnknown
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return KindRejected
	}
	return KindUnknown
}

// UserMessage returns the text shown to the operator for err.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindNetwork:
		return MsgNoResponse
	case KindRejected:
		var appErr *apperrors.AppError
		errors.As(err, &appErr)
		return appErr.Message
	default:
		return MsgUnexpected
	}
}
