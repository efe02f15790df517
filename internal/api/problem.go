package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/grmsync/internal/sync"
)

// Problem represents an RFC 7807 Problem Details response. Retryable tells
// the client whether resending the same request may succeed.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	Retryable bool   `json:"retryable"`
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusUnauthorized: {
		typeURI: "urn:grmsync:problem:unauthorized",
		title:   "Unauthorized",
	},
	http.StatusBadRequest: {
		typeURI: "urn:grmsync:problem:bad-request",
		title:   "Bad Request",
	},
	http.StatusNotFound: {
		typeURI: "urn:grmsync:problem:not-found",
		title:   "Not Found",
	},
	http.StatusRequestEntityTooLarge: {
		typeURI: "urn:grmsync:problem:too-large",
		title:   "Request Entity Too Large",
	},
	http.StatusInternalServerError: {
		typeURI: "urn:grmsync:problem:internal-error",
		title:   "Internal Server Error",
	},
	http.StatusUnprocessableEntity: {
		typeURI: "urn:grmsync:problem:rejected",
		title:   "Changes Rejected",
	},
	http.StatusServiceUnavailable: {
		typeURI: "urn:grmsync:problem:service-unavailable",
		title:   "Service Unavailable",
	},
}

func newProblem(r *http.Request, status int, detail string) Problem {
	pt, ok := problemTypes[status]
	if !ok {
		pt.typeURI = "about:blank"
		pt.title = http.StatusText(status)
	}
	return Problem{
		Type:      pt.typeURI,
		Title:     pt.title,
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		Retryable: status >= 500,
	}
}

// WriteProblem writes an RFC 7807 Problem Details response. Server errors
// are marked retryable, client errors are not.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemBody(w, status, newProblem(r, status, detail))
}

// ProblemWithRejections extends Problem with the records a push could not
// apply.
type ProblemWithRejections struct {
	Problem
	Errors []sync.Rejection `json:"errors"`
}

// WriteProblemWithRejections writes a non-retryable 422 listing every
// rejected record.
func WriteProblemWithRejections(w http.ResponseWriter, r *http.Request, detail string, rejections []sync.Rejection) {
	p := ProblemWithRejections{
		Problem: newProblem(r, http.StatusUnprocessableEntity, detail),
		Errors:  rejections,
	}
	if p.Errors == nil {
		p.Errors = []sync.Rejection{}
	}
	writeProblemBody(w, http.StatusUnprocessableEntity, p)
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}
