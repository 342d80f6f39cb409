package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveNames(t *testing.T) {
	assert.Equal(t, "graduated_2081.xlsx", ArchiveName(2081))
	assert.Equal(t, "graduated_2081_20240501120000.xlsx", TimestampedArchiveName(2081, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	tests := []struct {
		name     string
		wantYear int
		wantErr  error
	}{
		{name: "graduated_2081.xlsx", wantYear: 2081},
		{name: "graduated_2081_20240501120000.xlsx", wantYear: 2081},
		{name: "graduated_81.xlsx", wantErr: ErrArchiveNotFound},
		{name: "graduated_2081.csv", wantErr: ErrArchiveNotFound},
		{name: "../graduated_2081.xlsx", wantErr: ErrArchiveNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, err := ParseArchiveName(tt.name)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantYear, year)
		})
	}
}
