// Package classify holds the ordered rule tables that turn observations
// (status codes, sample values, path shapes) into verdicts.
//
// Every table is evaluated first-match-wins, top to bottom.
package classify

import (
	"fmt"
	"net/http"
)

// existenceCodes is the accept-set: a probe answered with one of these
// proves the route exists.
var existenceCodes = map[int]bool{
	http.StatusOK:                  true,
	http.StatusCreated:             true,
	http.StatusAccepted:            true,
	http.StatusNoContent:           true,
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusMethodNotAllowed:    true,
	http.StatusUnprocessableEntity: true,
	http.StatusTooManyRequests:     true,
}

// Exists reports whether status proves the route exists. Status 0 is a
// failed request and never does.
func Exists(status int) bool {
	return existenceCodes[status]
}

// Bucket is the verdict for a single parameter probe.
type Bucket int

const (
	// Ignored responses say nothing about the value.
	Ignored Bucket = iota
	// Accepted values were served.
	Accepted
	// Rejected values were refused as invalid.
	Rejected
)

// String returns the bucket name.
func (b Bucket) String() string {
	switch b {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "ignored"
	}
}

type bucketRule struct {
	codes  []int
	bucket Bucket
}

var bucketTable = []bucketRule{
	{codes: []int{http.StatusOK, http.StatusUnauthorized, http.StatusForbidden}, bucket: Accepted},
	{codes: []int{http.StatusBadRequest}, bucket: Rejected},
}

// BucketFor classifies a parameter probe's status code.
func BucketFor(status int) Bucket {
	for _, rule := range bucketTable {
		for _, code := range rule.codes {
			if code == status {
				return rule.bucket
			}
		}
	}
	return Ignored
}

var reasonTable = map[int]string{
	0:                              "Request failed before a response was received",
	http.StatusOK:                  "Endpoint exists and is accessible",
	http.StatusNotFound:            "Endpoint does not exist",
	http.StatusUnauthorized:        "Endpoint exists but requires authentication",
	http.StatusForbidden:           "Endpoint exists but access is forbidden",
	http.StatusMethodNotAllowed:    "Endpoint exists but HTTP method not allowed",
	http.StatusUnprocessableEntity: "Endpoint exists but request was malformed (e.g., too much data)",
	http.StatusBadRequest:          "Endpoint exists but request was invalid",
	http.StatusInternalServerError: "Endpoint exists but server encountered an error",
	http.StatusServiceUnavailable:  "Endpoint exists but service is temporarily unavailable",
}

// Reason returns a human-readable explanation for a probe status.
func Reason(status int) string {
	if r, ok := reasonTable[status]; ok {
		return r
	}
	return fmt.Sprintf("Endpoint may exist but returned status: %d", status)
}

// Required derives requiredness from bucket counts: a parameter is required
// only when something was rejected and nothing was accepted.
func Required(accepted, rejected int) bool {
	return rejected > 0 && accepted == 0
}
