package gateway

import (
	"strconv"
	"time"
)

// Response headers set by the gateway.
const (
	HeaderCacheControl = "Cache-Control"
	HeaderCacheStatus  = "X-Cache-Status"
	HeaderCacheAge     = "X-Cache-Age"
	HeaderCachedAt     = "X-Cached-At"
	HeaderRequestID    = "X-Request-Id"
)

// X-Cache-Status values.
const (
	CacheStatusHit  = "HIT"
	CacheStatusMiss = "MISS"
)

// CachedAtFormat is the ISO-8601 layout of X-Cached-At, always in UTC.
const CachedAtFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatAge renders an entry age for X-Cache-Age, floored to the largest
// whole unit: "<n>s" under a minute, "<n>m" under an hour, "<n>h" otherwise.
// Negative ages render as "0s".
func FormatAge(age time.Duration) string {
	seconds := int64(age / time.Second)
	switch {
	case seconds < 0:
		return "0s"
	case seconds < 60:
		return strconv.FormatInt(seconds, 10) + "s"
	case seconds < 3600:
		return strconv.FormatInt(seconds/60, 10) + "m"
	default:
		return strconv.FormatInt(seconds/3600, 10) + "h"
	}
}

func cacheControl(maxAge int) string {
	return "public, max-age=" + strconv.Itoa(maxAge)
}
