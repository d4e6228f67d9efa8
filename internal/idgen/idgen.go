// Package idgen generates unique suffixes for run-scoped table names.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is lower case only: table names must survive case-insensitive
// file systems on the database host.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 13

// TableName returns prefix followed by a random suffix. The result only
// contains identifier-safe characters when prefix does.
func TableName(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
