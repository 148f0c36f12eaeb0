package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// TermHasher derives stable document ids from terms so that importing the
// same term twice updates one document.
type TermHasher struct{}

// NewTermHasher creates a new term hasher instance
func NewTermHasher() *TermHasher {
	return &TermHasher{}
}

// TermID returns the hex MD5 of the lower-cased term. Callers normalize the
// term first; case is folded here so "Copa" and "copa" share an id.
func (h *TermHasher) TermID(term string) string {
	if term == "" {
		return ""
	}

	hash := md5.Sum([]byte(strings.ToLower(term)))
	return fmt.Sprintf("%x", hash)
}

// TermIDShort returns the first 8 characters of TermID, for log lines.
func (h *TermHasher) TermIDShort(term string) string {
	id := h.TermID(term)
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

var globalHasher = NewTermHasher()

// TermID is a convenience function that uses the global hasher
func TermID(term string) string {
	return globalHasher.TermID(term)
}

// TermIDShort is a convenience function that uses the global hasher
func TermIDShort(term string) string {
	return globalHasher.TermIDShort(term)
}
