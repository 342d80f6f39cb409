package student

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/grade"
)

const DefaultSection = "A"

type Student struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Grade       grade.Level `json:"grade"`
	Section     string      `json:"section"`
	Address     string      `json:"address"`
	FatherName  string      `json:"father_name"`
	MotherName  string      `json:"mother_name"`
	FatherPhone string      `json:"father_phone"`
	MotherPhone string      `json:"mother_phone"`
	Email       string      `json:"email"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// NaturalKey identifies a student across imports: the folded name and the father's phone,
// or the mother's when the father's is absent.
func (s Student) NaturalKey() string {
	return NaturalKey(s.Name, s.FatherPhone, s.MotherPhone)
}

func NaturalKey(name, fatherPhone, motherPhone string) string {
	phone := fatherPhone
	if phone == "" {
		phone = motherPhone
	}
	return strings.ToLower(core.CollapseSpaces(name)) + "|" + phone
}

// GenerateEmail returns a fresh login email for `name`: <first-name-slug>.<6 hex>@domain.
func GenerateEmail(name, domain string) string {
	var slug strings.Builder
	if fields := strings.Fields(name); len(fields) > 0 {
		for _, r := range strings.ToLower(fields[0]) {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				slug.WriteRune(r)
			}
		}
	}
	if slug.Len() == 0 {
		slug.WriteString("student")
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return slug.String() + "." + suffix + "@" + domain
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name        string `json:"name" validate:"required,notblank"`
	Grade       string `json:"grade" validate:"required,gradelevel"`
	Section     string `json:"section" validate:"omitempty,section"`
	Address     string `json:"address"`
	FatherName  string `json:"father_name"`
	MotherName  string `json:"mother_name"`
	FatherPhone string `json:"father_phone" validate:"omitempty,phone10"`
	MotherPhone string `json:"mother_phone" validate:"omitempty,phone10"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CollapseSpaces(ns.Name)
	ns.Grade = core.CleanString(ns.Grade)
	ns.Section = strings.ToUpper(core.CleanString(ns.Section))
	ns.Address = core.CleanString(ns.Address)
	ns.FatherName = core.CollapseSpaces(ns.FatherName)
	ns.MotherName = core.CollapseSpaces(ns.MotherName)
	ns.FatherPhone = core.CleanString(ns.FatherPhone)
	ns.MotherPhone = core.CleanString(ns.MotherPhone)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if lvl, err := grade.ParseActive(ns.Grade); err == nil {
		ns.Grade = lvl.String()
	}
	if ns.Section == "" {
		ns.Section = DefaultSection
	}
	return nil
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Blank fields keep their current value.
type UpdateStudent struct {
	Name        string `json:"name"`
	Grade       string `json:"grade" validate:"omitempty,gradelevel"`
	Section     string `json:"section" validate:"omitempty,section"`
	Address     string `json:"address"`
	FatherName  string `json:"father_name"`
	MotherName  string `json:"mother_name"`
	FatherPhone string `json:"father_phone" validate:"omitempty,phone10"`
	MotherPhone string `json:"mother_phone" validate:"omitempty,phone10"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	us.Name = orDefault(core.CollapseSpaces(us.Name), orig.Name)
	us.Grade = orDefault(core.CleanString(us.Grade), orig.Grade.String())
	us.Section = orDefault(strings.ToUpper(core.CleanString(us.Section)), orig.Section)
	us.Address = orDefault(core.CleanString(us.Address), orig.Address)
	us.FatherName = orDefault(core.CollapseSpaces(us.FatherName), orig.FatherName)
	us.MotherName = orDefault(core.CollapseSpaces(us.MotherName), orig.MotherName)
	us.FatherPhone = orDefault(core.CleanString(us.FatherPhone), orig.FatherPhone)
	us.MotherPhone = orDefault(core.CleanString(us.MotherPhone), orig.MotherPhone)

	if err := validate.Struct(us); err != nil {
		return err
	}
	if lvl, err := grade.ParseActive(us.Grade); err == nil {
		us.Grade = lvl.String()
	}
	return nil
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

type QueryFilter struct {
	Search  string `query:"search"`
	Grade   string `query:"grade"`
	Section string `query:"section"`
}

// Clean normalizes the filter; the "all" wildcard is dropped.
func (qf *QueryFilter) Clean() {
	qf.Search = core.CollapseSpaces(qf.Search)
	qf.Grade = core.CleanString(qf.Grade)
	if strings.EqualFold(qf.Grade, grade.All) {
		qf.Grade = ""
	} else if lvl, err := grade.Parse(qf.Grade); err == nil {
		qf.Grade = lvl.String()
	}
	qf.Section = strings.ToUpper(core.CleanString(qf.Section))
	if strings.EqualFold(qf.Section, grade.All) {
		qf.Section = ""
	}
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Grade == "" && qf.Section == ""
}

// Matches reports whether s satisfies every set field of the filter.
// Search is a case-insensitive match on name, parents' names, phones or email.
func (qf *QueryFilter) Matches(s Student) bool {
	if qf.Grade != "" && s.Grade.String() != qf.Grade {
		return false
	}
	if qf.Section != "" && s.Section != qf.Section {
		return false
	}
	if qf.Search != "" {
		kw := strings.ToLower(qf.Search)
		for _, fld := range []string{s.Name, s.FatherName, s.MotherName, s.FatherPhone, s.MotherPhone, s.Email} {
			if strings.Contains(strings.ToLower(fld), kw) {
				return true
			}
		}
		return false
	}
	return true
}

// DefaultOrdering is grade rank, then section, then name.
var DefaultOrdering = []core.DBOrdering{
	{Field: "grade_rank", Ascending: true},
	{Field: "section", Ascending: true},
	{Field: "name", Ascending: true},
}
