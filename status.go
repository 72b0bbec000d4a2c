package wapi

import (
	"fmt"
	"net/http"
)

// StatusClass groups HTTP status codes by their first digit.
type StatusClass int

const (
	StatusUnknown StatusClass = iota
	StatusInformational
	StatusSuccess
	StatusRedirection
	StatusClientError
	StatusServerError
)

// ClassOf returns the class of an HTTP status code.
func ClassOf(code int) StatusClass {
	switch {
	case code >= 100 && code <= 199:
		return StatusInformational
	case code >= 200 && code <= 299:
		return StatusSuccess
	case code >= 300 && code <= 399:
		return StatusRedirection
	case code >= 400 && code <= 499:
		return StatusClientError
	case code >= 500 && code <= 599:
		return StatusServerError
	default:
		return StatusUnknown
	}
}

func (c StatusClass) String() string {
	switch c {
	case StatusInformational:
		return "informational"
	case StatusSuccess:
		return "success"
	case StatusRedirection:
		return "redirection"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// IsAlwaysCacheable reports whether a response with this status code may be
// cached without explicit freshness information from the request.
func IsAlwaysCacheable(code int) bool {
	switch code {
	case http.StatusOK,
		http.StatusNonAuthoritativeInfo,
		http.StatusNoContent,
		http.StatusResetContent,
		http.StatusMultipleChoices,
		http.StatusMovedPermanently,
		http.StatusGone:
		return true
	default:
		return false
	}
}
