package feeschedule

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vidyalaya/core/grade"
)

const sample = `
default:
  monthlyFee: 1000
grades:
  Nursery: {admissionFee: 5000, monthlyFee: 1200}
  "Class 6":
    admissionFee: 8000
    monthlyFee: "2000.50"
    computerFee: 300
`

func TestParse(t *testing.T) {
	sched, err := Parse([]byte(sample))
	require.NoError(t, err)
	ctx := context.Background()

	r, err := sched.Rates(ctx, grade.Nursery)
	require.NoError(t, err)
	assert.True(t, r.AdmissionFee.Equal(decimal.NewFromInt(5000)))
	assert.True(t, r.MonthlyFee.Equal(decimal.NewFromInt(1200)))
	assert.True(t, r.ComputerFee.IsZero())

	r, _ = sched.Rates(ctx, grade.Six)
	assert.Equal(t, "2000.5", r.MonthlyFee.String())
	assert.True(t, r.ComputerFee.Equal(decimal.NewFromInt(300)))

	r, _ = sched.Rates(ctx, grade.Three)
	assert.True(t, r.MonthlyFee.Equal(decimal.NewFromInt(1000)))
	assert.True(t, r.AdmissionFee.IsZero())
}

func TestParse_errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown class", doc: "grades:\n  \"7\": {monthlyFee: 10}\n"},
		{name: "graduated", doc: "grades:\n  GRADUATED: {monthlyFee: 10}\n"},
		{name: "duplicate class", doc: "grades:\n  lkg: {monthlyFee: 10}\n  L.K.G.: {monthlyFee: 20}\n"},
		{name: "negative", doc: "default: {monthlyFee: -1}\n"},
		{name: "not a number", doc: "default: {monthlyFee: lots}\n"},
		{name: "not a scalar", doc: "default: {monthlyFee: [1, 2]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	sched, err := Load("")
	require.NoError(t, err)
	r, _ := sched.Rates(context.Background(), grade.One)
	assert.True(t, r.YearlyDue().IsZero())

	dir, err := ioutil.TempDir("", "fees")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "fees.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(sample), 0o600))
	sched, err = Load(path)
	require.NoError(t, err)
	r, _ = sched.Rates(context.Background(), grade.Nursery)
	assert.True(t, r.YearlyDue().Equal(decimal.NewFromInt(5000+12*1200)))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
