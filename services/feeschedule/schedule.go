// Package feeschedule loads what each class is charged from a YAML file:
//
//	default:
//	  monthlyFee: 1000
//	grades:
//	  Nursery: {admissionFee: 5000, monthlyFee: 1200}
//	  "6": {admissionFee: 8000, monthlyFee: 2000, computerFee: 300}
package feeschedule

import (
	"context"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/ledger"
)

type amount decimal.Decimal

func (a *amount) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: amount must be a number", n.Line)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return errors.Errorf("line %d: %q is not an amount", n.Line, n.Value)
	}
	if d.IsNegative() {
		return errors.Errorf("line %d: amount %s is negative", n.Line, n.Value)
	}
	*a = amount(d)
	return nil
}

type rates struct {
	AdmissionFee amount `yaml:"admissionFee"`
	MonthlyFee   amount `yaml:"monthlyFee"`
	ComputerFee  amount `yaml:"computerFee"`
}

func (r rates) toLedger() ledger.Rates {
	return ledger.Rates{
		AdmissionFee: decimal.Decimal(r.AdmissionFee),
		MonthlyFee:   decimal.Decimal(r.MonthlyFee),
		ComputerFee:  decimal.Decimal(r.ComputerFee),
	}
}

type document struct {
	Default *rates           `yaml:"default"`
	Grades  map[string]rates `yaml:"grades"`
}

// Schedule is a static ledger.FeeSchedule. Classes without rates use the default, or zero.
type Schedule struct {
	def    ledger.Rates
	grades map[grade.Level]ledger.Rates
}

var _ ledger.FeeSchedule = (*Schedule)(nil)

// Empty charges nothing.
func Empty() *Schedule {
	return &Schedule{grades: make(map[grade.Level]ledger.Rates)}
}

// Load reads the schedule at path; an empty path gives Empty().
func Load(path string) (*Schedule, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading fee schedule")
	}
	sched, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing fee schedule %s", path)
	}
	return sched, nil
}

func Parse(data []byte) (*Schedule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	sched := Empty()
	if doc.Default != nil {
		sched.def = doc.Default.toLedger()
	}
	for name, r := range doc.Grades {
		lvl, err := grade.ParseActive(name)
		if err != nil {
			return nil, errors.Errorf("unknown class %q", name)
		}
		if _, dup := sched.grades[lvl]; dup {
			return nil, errors.Errorf("class %s is listed twice", lvl)
		}
		sched.grades[lvl] = r.toLedger()
	}
	return sched, nil
}

func (s *Schedule) Rates(ctx context.Context, lvl grade.Level) (ledger.Rates, error) {
	if r, ok := s.grades[lvl]; ok {
		return r, nil
	}
	return s.def, nil
}
