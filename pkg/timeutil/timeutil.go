// Package timeutil provides academic-calendar helpers for Jakarta time
// (UTC+7). The school year starts in July: semester 1 runs July through
// December, semester 2 January through June. No external dependencies -
// uses only standard library.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JakartaTZ is the Jakarta timezone (UTC+7, no DST).
var JakartaTZ = time.FixedZone("Asia/Jakarta", 7*60*60)

// Now returns the current time in Jakarta timezone.
func Now() time.Time {
	return time.Now().In(JakartaTZ)
}

// ToJakarta converts a time to Jakarta timezone.
func ToJakarta(t time.Time) time.Time {
	return t.In(JakartaTZ)
}

// academicYearStartMonth is the month a new school year begins.
const academicYearStartMonth = time.July

// AcademicYearFor returns the academic year containing t, formatted as
// "YYYY/YYYY". A June 2026 date belongs to "2025/2026"; a July 2026 date
// to "2026/2027".
func AcademicYearFor(t time.Time) string {
	local := ToJakarta(t)
	start := local.Year()
	if local.Month() < academicYearStartMonth {
		start--
	}
	return FormatAcademicYear(start)
}

// SemesterFor returns the term containing t: 1 for July-December,
// 2 for January-June.
func SemesterFor(t time.Time) int {
	if ToJakarta(t).Month() >= academicYearStartMonth {
		return 1
	}
	return 2
}

// FormatAcademicYear formats a start year as "YYYY/YYYY".
func FormatAcademicYear(startYear int) string {
	return fmt.Sprintf("%d/%d", startYear, startYear+1)
}

// ParseAcademicYear parses "YYYY/YYYY" into its start year. The two
// years must be consecutive.
func ParseAcademicYear(s string) (int, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("timeutil: academic year must be YYYY/YYYY, got %q", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid start year in %q", s)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid end year in %q", s)
	}
	if end != start+1 {
		return 0, fmt.Errorf("timeutil: academic years must be consecutive, got %q", s)
	}
	return start, nil
}

// AcademicYearStart returns the first day of the academic year starting
// in startYear, at midnight Jakarta time.
func AcademicYearStart(startYear int) time.Time {
	return time.Date(startYear, academicYearStartMonth, 1, 0, 0, 0, 0, JakartaTZ)
}

// SemesterStart returns the first day of the given term of the academic
// year starting in startYear.
func SemesterStart(startYear, semester int) time.Time {
	if semester == 2 {
		return time.Date(startYear+1, time.January, 1, 0, 0, 0, 0, JakartaTZ)
	}
	return AcademicYearStart(startYear)
}
