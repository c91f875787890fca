package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s]+`)
	jsonDatePattern = regexp.MustCompile(`"date":\s*"([0-9]{4}-[0-9]{2}-[0-9]{2})"`)
	jsonTimePattern = regexp.MustCompile(`"time":\s*"([0-9]{1,2}:[0-9]{2})"`)
	jsonDurPattern  = regexp.MustCompile(`"duration":\s*"?([0-9]+)"?`)
)

// ExtractURLs returns every HTTP(S) URL in the text, in order.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// stripCodeFence removes markdown code-block wrappers the model sometimes adds
// despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	// Sometimes the model adds a json keyword after the backticks
	if strings.HasPrefix(s, "json") {
		s = strings.TrimSpace(s[4:])
	}

	return s
}

// flexInt accepts a JSON number, a quoted number, or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// "30 minutes" and friends: take the leading digits
		m := regexp.MustCompile(`^[0-9]+`).FindString(s)
		if m == "" {
			*f = 0
			return nil
		}
		n, _ = strconv.Atoi(m)
	}
	*f = flexInt(n)
	return nil
}

type meetingJSON struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Duration    flexInt `json:"duration"`
}

// ParseMeetingResponse turns a raw model response into MeetingDetails. The
// fallback chain is: JSON parse, per-field regex over the raw response, then
// natural-language parsing of the original message. It never fails; the worst
// case is an empty result.
func ParseMeetingResponse(raw, original string, now time.Time) *MeetingDetails {
	cleaned := stripCodeFence(raw)

	var parsed meetingJSON
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		details := &MeetingDetails{
			Title:       nullToEmpty(parsed.Title),
			Description: nullToEmpty(parsed.Description),
			Date:        nullToEmpty(parsed.Date),
			Time:        normalizeClock(parsed.Time),
			Duration:    int(parsed.Duration),
		}
		if details.Date != "" || details.Time != "" || details.Duration > 0 {
			return details
		}
		// Valid JSON but nothing in it: fall through to the message itself
		return parseNaturalDetails(original, now)
	}

	// Regex extraction over the malformed response
	details := &MeetingDetails{}
	if m := jsonDatePattern.FindStringSubmatch(cleaned); m != nil {
		details.Date = m[1]
	}
	if m := jsonTimePattern.FindStringSubmatch(cleaned); m != nil {
		details.Time = normalizeClock(m[1])
	}
	if m := jsonDurPattern.FindStringSubmatch(cleaned); m != nil {
		details.Duration, _ = strconv.Atoi(m[1])
	}
	if details.Date != "" || details.Time != "" || details.Duration > 0 {
		return details
	}

	// Last resort: parse the original message directly
	return parseNaturalDetails(original, now)
}

// nullToEmpty collapses the literal string "null" the model occasionally emits.
func nullToEmpty(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "null") {
		return ""
	}
	return strings.TrimSpace(s)
}

// normalizeClock pads "9:30" to "09:30".
func normalizeClock(s string) string {
	s = nullToEmpty(s)
	if len(s) == 4 && s[1] == ':' {
		return "0" + s
	}
	return s
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	dayMonthPattern = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)[\s,]*(\d{4})?`)
	monthDayPattern = regexp.MustCompile(`([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?\b[\s,]*(\d{4})?`)
	isoDatePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	clockPattern    = regexp.MustCompile(`(\d{1,2})[.:](\d{2})\s*(am|pm)?`)
	hourOnlyPattern = regexp.MustCompile(`(\d{1,2})\s*(am|pm)`)
	minutesPattern  = regexp.MustCompile(`(\d+)\s*(?:min|mins|minute|minutes)`)
	hoursPattern    = regexp.MustCompile(`(\d+)\s*(?:hr|hrs|hour|hours)`)
)

// parseNaturalDetails extracts date, time, and duration with plain pattern
// matching. It covers common direct phrasings ("2nd of november, 2025",
// "6.30 pm", "30 min"); anything beyond that is the model's job.
func parseNaturalDetails(message string, now time.Time) *MeetingDetails {
	lower := strings.ToLower(message)

	return &MeetingDetails{
		Date:     parseNaturalDate(lower, now),
		Time:     parseNaturalClock(lower),
		Duration: parseNaturalDuration(lower),
	}
}

func parseNaturalDate(lower string, now time.Time) string {
	if m := isoDatePattern.FindString(lower); m != "" {
		return m
	}

	if strings.Contains(lower, "tomorrow") {
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if strings.Contains(lower, "today") {
		return now.Format("2006-01-02")
	}
	if strings.Contains(lower, "next week") {
		return now.AddDate(0, 0, 7).Format("2006-01-02")
	}

	// "2nd of november, 2025" / "november 2"
	day, month, year := 0, time.Month(0), 0
	if m := dayMonthPattern.FindStringSubmatch(lower); m != nil {
		if mon, ok := months[m[2]]; ok {
			day, _ = strconv.Atoi(m[1])
			month = mon
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
			}
		}
	}
	if day == 0 {
		if m := monthDayPattern.FindStringSubmatch(lower); m != nil {
			if mon, ok := months[m[1]]; ok {
				day, _ = strconv.Atoi(m[2])
				month = mon
				if m[3] != "" {
					year, _ = strconv.Atoi(m[3])
				}
			}
		}
	}

	if day == 0 || day > 31 {
		return ""
	}

	if year == 0 {
		year = now.Year()
		// No year given and the date already passed: assume next year
		candidate := time.Date(year, month, day, 23, 59, 0, 0, now.Location())
		if candidate.Before(now) {
			year++
		}
	}

	// time.Date normalizes overflow ("november 31" becomes December 1), so a
	// changed field means the day does not exist in that month
	composed := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	if composed.Year() != year || composed.Month() != month || composed.Day() != day {
		return ""
	}

	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func parseNaturalClock(lower string) string {
	if m := clockPattern.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return ""
		}
		if m[3] == "pm" && hour < 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}

	if m := hourOnlyPattern.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour > 12 {
			return ""
		}
		if m[2] == "pm" && hour < 12 {
			hour += 12
		}
		if m[2] == "am" && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:00", hour)
	}

	return ""
}

func parseNaturalDuration(lower string) int {
	if m := minutesPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if strings.Contains(lower, "half an hour") || strings.Contains(lower, "half hour") {
		return 30
	}
	if m := hoursPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60
	}
	if strings.Contains(lower, "an hour") || strings.Contains(lower, "one hour") {
		return 60
	}
	if strings.Contains(lower, "few minutes") {
		return 10
	}
	return 0
}
