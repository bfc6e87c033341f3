// Package appletime converts chat.db timestamps, which count
// nanoseconds since 2001-01-01 00:00:00 UTC rather than the Unix epoch.
package appletime

import "time"

// Epoch is the reference point all stored timestamps count from.
var Epoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Unknown is the display value for a missing or unconvertible timestamp.
const Unknown = "Unknown"

const displayLayout = "2006-01-02 15:04:05"

// Time converts a raw nanosecond offset to a UTC time.
func Time(ns int64) time.Time {
	return Epoch.Add(time.Duration(ns)).UTC()
}

// Format renders a nullable nanosecond offset for display. A nil value
// formats as Unknown; conversion itself never fails.
func Format(ns *int64) string {
	if ns == nil {
		return Unknown
	}
	return Time(*ns).Format(displayLayout)
}
