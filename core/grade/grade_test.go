package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr error
	}{
		{in: "Nursery", want: Nursery},
		{in: "nursery", want: Nursery},
		{in: "LKG", want: LKG},
		{in: "l.k.g.", want: LKG},
		{in: "U K G", want: UKG},
		{in: "1", want: One},
		{in: "Class 6", want: Six},
		{in: "grade-3", want: Three},
		{in: "GRADUATED", want: Graduated},
		{in: "7", wantErr: ErrUnknownLevel},
		{in: "", wantErr: ErrUnknownLevel},
		{in: "one", wantErr: ErrUnknownLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseActive(t *testing.T) {
	_, err := ParseActive("GRADUATED")
	assert.Equal(t, ErrUnknownLevel, err)

	lvl, err := ParseActive("ukg")
	assert.NoError(t, err)
	assert.Equal(t, UKG, lvl)
}

func TestLevel_Next(t *testing.T) {
	assert.Equal(t, LKG, Nursery.Next())
	assert.Equal(t, One, UKG.Next())
	assert.Equal(t, Graduated, Six.Next())
	assert.Equal(t, Graduated, Graduated.Next())
	assert.Equal(t, Level(""), Level("7").Next())
}

func TestOrdering(t *testing.T) {
	assert.True(t, Nursery.Less(LKG))
	assert.True(t, UKG.Less(One))
	assert.True(t, Six.Less(Graduated))
	assert.False(t, Two.Less(One))
	assert.Len(t, Active, 9)
	assert.Equal(t, []Level{Six, Five, Four, Three, Two, One, UKG, LKG, Nursery}, Descending())
}
