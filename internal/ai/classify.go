package ai

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/sashabaranov/go-openai"
)

// Class is the transition guard fed to the invoker state machine.
type Class int

const (
	ClassFatal Class = iota
	ClassTransport
	ClassAuth
	ClassRateLimit
	ClassSchemaUnsupported
	ClassCanceled
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassAuth:
		return "auth"
	case ClassRateLimit:
		return "rate_limit"
	case ClassSchemaUnsupported:
		return "schema_unsupported"
	case ClassCanceled:
		return "canceled"
	default:
		return "fatal"
	}
}

// Classifier maps a failed attempt to a Class.
type Classifier func(err error) Class

// ErrEmptyCompletion is returned when the upstream answered 200 without any
// usable choice.
var ErrEmptyCompletion = errors.New("no response from AI")

// Classify is the default Classifier. Both transports surface upstream HTTP
// failures as *openai.APIError or *openai.RequestError, so status-based rules
// apply to either.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		param := ""
		if apiErr.Param != nil {
			param = *apiErr.Param
		}
		code, _ := apiErr.Code.(string)
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message+" "+param+" "+code)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := string(reqErr.Body)
		if reqErr.Err != nil {
			msg += " " + reqErr.Err.Error()
		}
		return classifyStatus(reqErr.HTTPStatusCode, msg)
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return ClassTransport
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return ClassTransport
		}
		return ClassFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransport
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "connection refused", "socket hang up", "timeout", "broken pipe"} {
		if strings.Contains(msg, s) {
			return ClassTransport
		}
	}
	return ClassFatal
}

func classifyStatus(status int, detail string) Class {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status == http.StatusBadRequest && isSchemaUnsupported(detail):
		return ClassSchemaUnsupported
	case status == http.StatusRequestTimeout || status >= 500:
		return ClassTransport
	default:
		return ClassFatal
	}
}

// isSchemaUnsupported recognizes the upstream's "this model cannot do
// json_schema" rejection, e.g. "Invalid parameter: 'response_format' of type
// 'json_schema' is not supported with this model."
func isSchemaUnsupported(detail string) bool {
	d := strings.ToLower(detail)
	if strings.Contains(d, "json_schema") || strings.Contains(d, "structured output") {
		return true
	}
	return strings.Contains(d, "response_format") &&
		(strings.Contains(d, "not supported") || strings.Contains(d, "unsupported") || strings.Contains(d, "invalid"))
}
