package utils

import (
	"errors"
	"strings"
)

var ErrEmptyUserName = errors.New("user name is empty")

// Batch splits xs into consecutive slices of at most size elements.
func Batch[T any](xs []T, size int) [][]T {
	if size <= 0 {
		size = len(xs)
	}
	var out [][]T
	for i := 0; i < len(xs); i += size {
		end := i + size
		if end > len(xs) {
			end = len(xs)
		}
		out = append(out, xs[i:end])
	}
	return out
}

func Flatten[T any](nested [][]T) []T {
	var n int
	for _, inner := range nested {
		n += len(inner)
	}
	out := make([]T, 0, n)
	for _, inner := range nested {
		out = append(out, inner...)
	}
	return out
}

// SplitUserFullName returns (first, last). A single token is used for both;
// otherwise the last token is the last name and the rest the first name.
func SplitUserFullName(fullName string) (string, string, error) {
	tokens := strings.Fields(fullName)
	switch len(tokens) {
	case 0:
		return "", "", ErrEmptyUserName
	case 1:
		return tokens[0], tokens[0], nil
	default:
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1], nil
	}
}
