package domain

import "time"

// TimestampLayout is the storage format for created/updated timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// legacyLayouts are accepted on read in addition to RFC 3339.
var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses s in any accepted layout.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp returns s re-rendered in TimestampLayout. An unparseable
// value is replaced by now and repaired is true; callers log the repair.
func NormalizeTimestamp(s string, now time.Time) (out string, repaired bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return FormatTimestamp(now), true
	}
	return FormatTimestamp(t), false
}
