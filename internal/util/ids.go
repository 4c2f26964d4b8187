package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a 16 character lower-case id with the given prefix,
// e.g. "ses_3k9x0c1m2p4q7r8s".
func NewID(prefix string) string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		id = gonanoid.Must()
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
