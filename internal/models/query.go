package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a query or question is blank.
var ErrEmptyQuery = errors.New("query cannot be empty")

// MaxK caps the number of chunks a single retrieval request may ask for.
const MaxK = 50

// SearchQuery is a retrieval request.
type SearchQuery struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query and normalizes k. A k of zero or less is replaced
// by defaultK; k above MaxK is capped.
func (q *SearchQuery) Validate(defaultK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if q.K > MaxK {
		q.K = MaxK
	}
	return nil
}

// AskQuery is a question for the response generator.
type AskQuery struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects empty input.
func (q *AskQuery) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return ErrEmptyQuery
	}
	return nil
}
