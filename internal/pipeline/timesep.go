package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WeChat renders time separators as centered system bubbles. The grammar
// covers the four shapes the client uses, each optionally carrying a
// day-period prefix before the clock:
//
//	[凌晨|早上|上午|中午|下午|晚上] HH:MM
//	昨天|今天|前天 [period] HH:MM
//	星期X [period] HH:MM            (compact form with no space included)
//	[YYYY年] N月N日 [period] HH:MM
const (
	periodAlt  = `(凌晨|早上|上午|中午|下午|晚上)`
	clockPart  = `(\d{1,2}):(\d{2})`
	weekdayAlt = `([一二三四五六日天])`
)

var (
	reClockLine   = regexp.MustCompile(`^` + periodAlt + `?\s*` + clockPart + `$`)
	reRelDayLine  = regexp.MustCompile(`^(昨天|今天|前天)\s*` + periodAlt + `?\s*` + clockPart + `$`)
	reWeekdayLine = regexp.MustCompile(`^星期` + weekdayAlt + `\s*` + periodAlt + `?\s*` + clockPart + `$`)
	reDateLine    = regexp.MustCompile(`^(?:(\d{4})年)?(\d{1,2})月(\d{1,2})日\s*` + periodAlt + `?\s*` + clockPart + `$`)
)

var weekdayMap = map[string]time.Weekday{
	"日": time.Sunday, "天": time.Sunday,
	"一": time.Monday, "二": time.Tuesday, "三": time.Wednesday,
	"四": time.Thursday, "五": time.Friday, "六": time.Saturday,
}

// isTimestampLine reports whether a single trimmed line is exactly one
// time-separator token, with nothing left over. Also reused by the quote
// extractor to strip timestamp-shaped lines.
func isTimestampLine(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	return reClockLine.MatchString(t) ||
		reRelDayLine.MatchString(t) ||
		reWeekdayLine.MatchString(t) ||
		reDateLine.MatchString(t)
}

// isTimeSeparator reports whether a unit's lines form a system time divider:
// at most two lines, and either each line is a timestamp line or the lines
// joined with a space form one (WeChat sometimes wraps date and clock).
func isTimeSeparator(lines []string) bool {
	if len(lines) == 0 || len(lines) > 2 {
		return false
	}
	if isTimestampLine(strings.Join(lines, " ")) {
		return true
	}
	for _, l := range lines {
		if !isTimestampLine(l) {
			return false
		}
	}
	return true
}

// parseTimeSeparator resolves separator lines into an absolute time against
// the reference time ref (the current context). The boolean is false when
// the shape matched but numeric resolution failed; callers keep the previous
// context in that case.
func parseTimeSeparator(lines []string, ref time.Time) (time.Time, bool) {
	joined := strings.TrimSpace(strings.Join(lines, " "))
	if t, ok := parseTimestampLine(joined, ref); ok {
		return t, true
	}
	// Fall back to the first parseable line.
	for _, l := range lines {
		if t, ok := parseTimestampLine(strings.TrimSpace(l), ref); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimestampLine parses one separator token.
func parseTimestampLine(line string, ref time.Time) (time.Time, bool) {
	if m := reRelDayLine.FindStringSubmatch(line); m != nil {
		offset := map[string]int{"今天": 0, "昨天": -1, "前天": -2}[m[1]]
		return buildTime(ref, offset, m[2], m[3], m[4])
	}
	if m := reWeekdayLine.FindStringSubmatch(line); m != nil {
		target, ok := weekdayMap[m[1]]
		if !ok {
			return time.Time{}, false
		}
		back := (int(ref.Weekday()) - int(target) + 7) % 7
		if back == 0 {
			// Same weekday name means the last occurrence, a week ago.
			back = 7
		}
		return buildTime(ref, -back, m[2], m[3], m[4])
	}
	if m := reDateLine.FindStringSubmatch(line); m != nil {
		year := ref.Year()
		if m[1] != "" {
			y, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			year = y
		}
		month, err1 := strconv.Atoi(m[2])
		day, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		hour, minute, ok := clockWithPeriod(m[4], m[5], m[6])
		if !ok {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, hour, minute, 0, 0, ref.Location()), true
	}
	if m := reClockLine.FindStringSubmatch(line); m != nil {
		return buildTime(ref, 0, m[1], m[2], m[3])
	}
	return time.Time{}, false
}

// buildTime combines a day offset from ref with a period-adjusted clock.
func buildTime(ref time.Time, dayOffset int, period, hourStr, minStr string) (time.Time, bool) {
	hour, minute, ok := clockWithPeriod(period, hourStr, minStr)
	if !ok {
		return time.Time{}, false
	}
	d := ref.AddDate(0, 0, dayOffset)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, ref.Location()), true
}

// clockWithPeriod applies the 12-hour day-period adjustment table:
// 凌晨 wraps 12 back to 0; 下午 and 晚上 add 12 unless the hour is already
// on the 24-hour clock.
func clockWithPeriod(period, hourStr, minStr string) (hour, minute int, ok bool) {
	h, err1 := strconv.Atoi(hourStr)
	m, err2 := strconv.Atoi(minStr)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	switch period {
	case "凌晨":
		if h == 12 {
			h = 0
		}
	case "下午", "晚上":
		if h < 12 {
			h += 12
		}
	}
	return h, m, true
}
