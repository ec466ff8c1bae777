package cache

import (
	"net/url"
)

// DefaultKeyPrefix namespaces gateway entries in a shared store.
const DefaultKeyPrefix = "kg-edge:"

// Key identifies a cached response. It is derived from the request URL only;
// header values never take part.
type Key struct {
	// Prefix namespaces the key in the store
	Prefix string

	// Path is the escaped request path (e.g. "/api/kg/node/42")
	Path string

	// RawQuery is the query string exactly as received, without "?"
	RawQuery string
}

// KeyFromURL builds the key for a request URL.
func KeyFromURL(prefix string, u *url.URL) Key {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return Key{
		Prefix:   prefix,
		Path:     path,
		RawQuery: u.RawQuery,
	}
}

// String returns the store key.
// Format: prefix + path [+ "?" + query]
//
// Example:
//
//	kg-edge:/api/kg/node/42?depth=2
func (k Key) String() string {
	if k.RawQuery == "" {
		return k.Prefix + k.Path
	}
	return k.Prefix + k.Path + "?" + k.RawQuery
}
