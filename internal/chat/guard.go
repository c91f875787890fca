package chat

import "time"

// IsTimeInPast reports whether the proposed meeting start falls before
// now plus the buffer. Unparseable input is treated as not-past; the
// negotiation catches bad fields through the missing-details check instead.
func IsTimeInPast(date, clock string, now time.Time, buffer time.Duration) bool {
	if date == "" || clock == "" {
		return false
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, now.Location())
	if err != nil {
		return false
	}

	return start.Before(now.Add(buffer))
}
