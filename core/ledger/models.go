// Package ledger keeps the month-indexed fee ledger of every student.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const MonthsInYear = 12

// Month is the index of a Bikram Sambat month, Baishakh being 0.
type Month int

var (
	ErrUnknownMonth = errors.New("unknown month")

	MonthNames = [MonthsInYear]string{
		"Baishakh", "Jestha", "Ashadh", "Shrawan", "Bhadra", "Ashwin",
		"Kartik", "Mangsir", "Poush", "Magh", "Falgun", "Chaitra",
	}

	monthAliases = map[string]Month{
		"baisakh": 0, "baishak": 0, "baisakha": 0, "vaishakh": 0,
		"jeth": 1, "jyestha": 1, "jyeshtha": 1,
		"asar": 2, "ashar": 2, "asadh": 2, "aashadh": 2,
		"sawan": 3, "saun": 3, "srawan": 3, "shravan": 3,
		"bhadau": 4, "bhadrapad": 4,
		"asoj": 5, "ashoj": 5, "aswin": 5,
		"katik": 6, "kartika": 6,
		"mansir": 7, "marga": 7,
		"push": 8, "pous": 8, "paush": 8,
		"magha": 9,
		"fagun": 10, "phagun": 10, "phalgun": 10,
		"chait": 11, "chaita": 11, "chaite": 11,
	}
)

func init() {
	for i, name := range MonthNames {
		monthAliases[foldMonth(name)] = Month(i)
	}
}

func foldMonth(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseMonth resolves a month name, a common alias or its 1-based number.
func ParseMonth(s string) (Month, error) {
	key := foldMonth(s)
	if m, ok := monthAliases[key]; ok {
		return m, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= MonthsInYear {
		return Month(n - 1), nil
	}
	return 0, ErrUnknownMonth
}

func (m Month) Valid() bool { return m >= 0 && m < MonthsInYear }

func (m Month) String() string {
	if !m.Valid() {
		return "Month(" + strconv.Itoa(int(m)) + ")"
	}
	return MonthNames[m]
}

// Entry holds what was paid in one month.
type Entry struct {
	AdmissionFee decimal.Decimal `json:"admissionFee"`
	MonthlyFee   decimal.Decimal `json:"monthlyFee"`
	ComputerFee  decimal.Decimal `json:"computerFee"`
}

func (e Entry) Total() decimal.Decimal {
	return e.AdmissionFee.Add(e.MonthlyFee).Add(e.ComputerFee)
}

func (e Entry) IsZero() bool {
	return e.AdmissionFee.IsZero() && e.MonthlyFee.IsZero() && e.ComputerFee.IsZero()
}

func (e Entry) Equal(other Entry) bool {
	return e.AdmissionFee.Equal(other.AdmissionFee) &&
		e.MonthlyFee.Equal(other.MonthlyFee) &&
		e.ComputerFee.Equal(other.ComputerFee)
}

// MarshalJSON emits amounts as JSON numbers.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AdmissionFee json.Number `json:"admissionFee"`
		MonthlyFee   json.Number `json:"monthlyFee"`
		ComputerFee  json.Number `json:"computerFee"`
	}{
		AdmissionFee: amount(e.AdmissionFee),
		MonthlyFee:   amount(e.MonthlyFee),
		ComputerFee:  amount(e.ComputerFee),
	})
}

func amount(d decimal.Decimal) json.Number { return json.Number(d.String()) }

// EntryPatch changes the set fields of an Entry.
type EntryPatch struct {
	AdmissionFee *decimal.Decimal `json:"admissionFee"`
	MonthlyFee   *decimal.Decimal `json:"monthlyFee"`
	ComputerFee  *decimal.Decimal `json:"computerFee"`
}

func (p EntryPatch) IsEmpty() bool {
	return p.AdmissionFee == nil && p.MonthlyFee == nil && p.ComputerFee == nil
}

func (p EntryPatch) Apply(e Entry) Entry {
	if p.AdmissionFee != nil {
		e.AdmissionFee = *p.AdmissionFee
	}
	if p.MonthlyFee != nil {
		e.MonthlyFee = *p.MonthlyFee
	}
	if p.ComputerFee != nil {
		e.ComputerFee = *p.ComputerFee
	}
	return e
}

type Months [MonthsInYear]Entry

// MarshalJSON emits the months as an object keyed by month name, in calendar order.
func (ms Months) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range ms {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(strconv.Quote(MonthNames[i]))
		buf.WriteByte(':')
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ms Months) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, e := range ms {
		total = total.Add(e.Total())
	}
	return total
}

// Ledger is one student's payments over one academic year.
type Ledger struct {
	StudentID string `json:"studentId"`
	Year      int    `json:"year"`
	Months    Months `json:"months"`
}

// Rates are what a grade is charged: admission once, the others every month.
type Rates struct {
	AdmissionFee decimal.Decimal `json:"admissionFee"`
	MonthlyFee   decimal.Decimal `json:"monthlyFee"`
	ComputerFee  decimal.Decimal `json:"computerFee"`
}

// YearlyDue is admission + 12 × (monthly + computer).
func (r Rates) YearlyDue() decimal.Decimal {
	twelve := decimal.NewFromInt(MonthsInYear)
	return r.AdmissionFee.Add(r.MonthlyFee.Mul(twelve)).Add(r.ComputerFee.Mul(twelve))
}

func (r Rates) MarshalJSON() ([]byte, error) {
	return Entry(r).MarshalJSON()
}

type Summary struct {
	StudentID string
	Year      int
	Grade     string
	Rates     Rates
	TotalPaid decimal.Decimal
	Due       decimal.Decimal
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StudentID string      `json:"studentId"`
		Year      int         `json:"year"`
		Grade     string      `json:"grade"`
		Rates     Rates       `json:"rates"`
		TotalPaid json.Number `json:"totalPaid"`
		Due       json.Number `json:"due"`
	}{s.StudentID, s.Year, s.Grade, s.Rates, amount(s.TotalPaid), amount(s.Due)})
}
