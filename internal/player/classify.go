package player

import (
	"fmt"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors
type ErrorCategory int

const (
	// ErrCategoryNetwork indicates network-related failures (connection, timeout, DNS, HTTP)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec indicates decode or negotiation failures
	ErrCategoryCodec
	// ErrCategoryAuth indicates authentication/authorization failures
	ErrCategoryAuth
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// PlaybackError is a classified error posted on the playbin bus.
type PlaybackError struct {
	URI      string
	Source   string
	Message  string
	Debug    string
	Category ErrorCategory
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("player: %s error from %s: %s (uri=%s)", e.Category, e.Source, e.Message, e.URI)
}

// Retryable reports whether reloading the URI may help.
func (e *PlaybackError) Retryable() bool {
	return e.Category == ErrCategoryNetwork
}

// ClassifyGError categorizes an error message parsed off the bus.
//
// go-gst's GError does not expose the error domain, so classification relies on
// keyword matching over the message and debug string.
func ClassifyGError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return Classify(gerr.Error(), gerr.DebugString())
}

// Classify categorizes an error from its message and debug text.
//
// Priority: auth (most specific), then codec, then network (most common).
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message) + " " + strings.ToLower(debug)

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

var authKeywords = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"authentication",
	"credentials",
	"password",
	"username",
}

var codecKeywords = []string{
	"codec",
	"decode",
	"format",
	"negotiation",
	"not-negotiated",
	"not negotiated",
	"caps",
	"no decoder",
	"missing plugin",
	"could not determine type",
}

var networkKeywords = []string{
	"connection",
	"timeout",
	"timed out",
	"unreachable",
	"network",
	"dns",
	"resolve",
	"socket",
	"tcp",
	"http",
	"rtsp",
	"not found",
	"could not connect",
	"failed to connect",
	"could not read",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
