// Package pathutil translates between filesystem-style paths and flat
// object-store keys.
//
// A path such as "/warehouse/2024/part-0.csv" maps to the key
// "warehouse/2024/part-0.csv"; the prefix form used for listings and
// directory markers is "warehouse/2024/". Keys map back to logical paths by
// prefixing the "s3://" schema token.
package pathutil

import (
	"path"
	"strings"
)

const (
	// Schema is the logical schema token prefixed to paths built from keys.
	Schema = "s3://"

	// Separator is the key delimiter used for prefix listings.
	Separator = "/"
)

// ToKey converts a filesystem path into an object key. A single leading
// separator is dropped. When addTrailingSlash is set and the path does not
// already end in a separator, one is appended, producing the prefix form.
//
// The root path "/" maps to the empty key in both forms.
func ToKey(p string, addTrailingSlash bool) string {
	if p == "" {
		return ""
	}
	key := strings.TrimPrefix(p, Separator)
	if addTrailingSlash && !strings.HasSuffix(p, Separator) {
		key += Separator
	}
	return key
}

// ToKeyExact converts p into the key used for exact object addressing.
func ToKeyExact(p string) string {
	return ToKey(p, false)
}

// ToPrefix converts p into the separator-terminated prefix form.
func ToPrefix(p string) string {
	return ToKey(p, true)
}

// ToPath converts an object key into a logical path carrying the schema token.
// It is the left inverse of ToKeyExact: FromURI(ToPath(ToKeyExact(p))) == p for
// every p that starts with a separator.
func ToPath(key string) string {
	if key == "" {
		return ""
	}
	if strings.HasPrefix(key, Separator) {
		return Schema + key
	}
	return Schema + Separator + key
}

// FromURI strips the schema token from a logical path, returning the
// separator-rooted path component. Paths without the token are returned
// unchanged apart from gaining a leading separator.
func FromURI(uri string) string {
	if uri == "" {
		return ""
	}
	p := strings.TrimPrefix(uri, Schema)
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	return p
}

// Parent returns the parent directory of p, ignoring a trailing separator.
func Parent(p string) string {
	trimmed := strings.TrimSuffix(p, Separator)
	if trimmed == "" {
		return Separator
	}
	return path.Dir(trimmed)
}

// Base returns the last element of p, ignoring a trailing separator.
func Base(p string) string {
	return path.Base(p)
}

// LooksLikeFile reports whether the last element of p contains a dot.
//
// This is a naming heuristic, not a classification: extensionless files read
// as directories and dotted directory names read as files.
func LooksLikeFile(p string) bool {
	return strings.Contains(Base(p), ".")
}

// ReplacePrefix substitutes newPrefix for the first occurrence of oldPrefix in key.
func ReplacePrefix(key, oldPrefix, newPrefix string) string {
	return strings.Replace(key, oldPrefix, newPrefix, 1)
}
