// Package timefmt converts integer centiseconds to and from the mm:ss.cc
// display form. The conversion is display-only; ranking comparisons always
// operate on the raw centisecond integers.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
)

var pattern = regexp.MustCompile(`^(\d{2,}):([0-5]\d)\.(\d{2})$`)

// Format renders centiseconds as mm:ss.cc.
func Format(centiseconds int) string {
	if centiseconds < 0 {
		centiseconds = 0
	}
	minutes := centiseconds / 6000
	seconds := centiseconds / 100 % 60
	centi := centiseconds % 100
	return fmt.Sprintf("%02d:%02d.%02d", minutes, seconds, centi)
}

// Parse reads an mm:ss.cc string back into centiseconds.
func Parse(s string) (int, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time %q, want mm:ss.cc", s)
	}
	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	seconds, _ := strconv.Atoi(m[2])
	centi, _ := strconv.Atoi(m[3])
	return minutes*6000 + seconds*100 + centi, nil
}
