package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/d347h-eth/indexer-public/internal/circuitbreaker"
	"github.com/d347h-eth/indexer-public/internal/listings"
)

type Class string

const (
	ClassTerminal     Class = "terminal"
	ClassTransient    Class = "transient"
	ClassThrottled    Class = "throttled"
	ClassUnauthorized Class = "unauthorized"
	ClassNotFound     Class = "not_found"
	ClassSkip         Class = "skip"
)

// ThrottleCooldown is the wait applied after a rate-limited response,
// regardless of the queue's declared backoff curve.
const ThrottleCooldown = 5 * time.Second

type Decision struct {
	Class  Class
	Reason string
}

// Retryable reports whether another attempt can plausibly succeed.
// Unauthorized and not-found responses are deterministic and never
// retried; data-quality skips are dropped by design.
func (d Decision) Retryable() bool {
	return d.Class == ClassTransient || d.Class == ClassThrottled
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTransient,
		reason: "explicit_transient",
	}
}

func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassTerminal,
		reason: "explicit_terminal",
	}
}

// Skip marks an error as a data-quality condition: the payload cannot be
// processed and never will be, so the message is dropped without retry.
func Skip(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{
		err:    err,
		class:  ClassSkip,
		reason: "data_quality_skip",
	}
}

func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return Decision{Class: ClassTransient, Reason: "circuit_open"}
	}

	var statusErr *listings.StatusError
	if errors.As(err, &statusErr) {
		return classifyHTTPStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Decision{Class: ClassTransient, Reason: "net_timeout"}
		}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyHTTPStatus(code int) Decision {
	switch {
	case code == http.StatusTooManyRequests:
		return Decision{Class: ClassThrottled, Reason: "http_429"}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Decision{Class: ClassUnauthorized, Reason: "http_auth"}
	case code == http.StatusNotFound:
		return Decision{Class: ClassNotFound, Reason: "http_404"}
	case code >= 500:
		return Decision{Class: ClassTransient, Reason: "http_5xx"}
	default:
		return Decision{Class: ClassTerminal, Reason: "http_terminal"}
	}
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"too many requests",
	"rate limit",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"deadlock detected",
	"serialization failure",
}

var terminalMessageTokens = []string{
	"invalid argument",
	"invalid params",
	"execution reverted",
	"constraint violation",
	"duplicate key value",
	"malformed trace",
	"unknown selector",
}
