// Package promotion advances every class to the next grade at the end of the academic year
// and archives the students that graduate.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/trezcool/vidyalaya/core/grade"
)

const ArchiveContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrInProgress      = errors.New("a promotion is already in progress")
	ErrArchiveNotFound = errors.New("graduation archive not found")
	ErrArchiveExists   = errors.New("graduation archive already exists")

	archiveNameRegex = regexp.MustCompile(`^graduated_(\d{4})(_\d{14})?\.xlsx$`)
)

type (
	ClassSummary struct {
		CurrentClass grade.Level `json:"currentClass"`
		NextClass    grade.Level `json:"nextClass"`
		StudentCount int         `json:"studentCount"`
		CanPromote   bool        `json:"canPromote"`
	}

	ArchiveInfo struct {
		Name      string    `json:"name"`
		Year      int       `json:"year"`
		Size      int64     `json:"size"`
		CreatedAt time.Time `json:"createdAt"` // UTC
	}

	// ArchiveStore keeps graduation archives. Archives are never modified once created.
	ArchiveStore interface {
		// Create stores a new archive; it fails with ErrArchiveExists when `name` is taken.
		Create(ctx context.Context, name string, content []byte) (ArchiveInfo, error)
		List(ctx context.Context) ([]ArchiveInfo, error)
		Fetch(ctx context.Context, name string) (ArchiveInfo, []byte, error)
		// Discard removes an archive whose graduation could not be completed.
		Discard(ctx context.Context, name string) error
	}

	Outcome struct {
		Success       bool         `json:"success"`
		CurrentClass  grade.Level  `json:"currentClass"`
		NextClass     grade.Level  `json:"nextClass"`
		PromotedCount int          `json:"promotedCount"`
		Archive       *ArchiveInfo `json:"archive,omitempty"`
		Message       string       `json:"message"`
	}

	AllOutcome struct {
		Success  bool      `json:"success"`
		Outcomes []Outcome `json:"outcomes"`
		// Remaining lists, highest first, the classes a failed run did not promote.
		Remaining []grade.Level `json:"remaining,omitempty"`
		Message   string        `json:"message"`
	}
)

// ArchiveName is the name of the first graduation archive of `year`.
func ArchiveName(year int) string {
	return fmt.Sprintf("graduated_%d.xlsx", year)
}

// TimestampedArchiveName disambiguates a second graduation within the same year.
func TimestampedArchiveName(year int, at time.Time) string {
	return fmt.Sprintf("graduated_%d_%s.xlsx", year, at.UTC().Format("20060102150405"))
}

// ParseArchiveName returns the year of a well-formed archive name.
func ParseArchiveName(name string) (int, error) {
	m := archiveNameRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, ErrArchiveNotFound
	}
	year, _ := strconv.Atoi(m[1])
	return year, nil
}
