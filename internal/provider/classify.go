package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"rya/internal/pkg/errors"
)

// classifyTransportError maps a transport-level failure onto the provider
// failure taxonomy.
func classifyTransportError(provider string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout(provider)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Timeout(provider)
	}
	return errors.WrapWithCode(err, errors.CodeUnavailable, provider+".attempt", "request failed")
}

// classifyStatus maps a non-2xx response onto the failure taxonomy.
// Anything that is not a clean success is a tier failure; partial results
// never count as success.
func classifyStatus(provider string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.RateLimited(provider)
	case status == http.StatusGatewayTimeout:
		return errors.Timeout(provider)
	case status >= 500:
		return errors.Unavailable(provider)
	default:
		return errors.InvalidResponse(provider, fmt.Sprintf("http %d", status))
	}
}
