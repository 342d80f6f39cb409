// Package grade holds the fixed, ordered academic progression of the school.
package grade

import (
	"errors"
	"strings"
	"unicode"
)

type Level string

const (
	Nursery   Level = "Nursery"
	LKG       Level = "L.K.G."
	UKG       Level = "U.K.G."
	One       Level = "1"
	Two       Level = "2"
	Three     Level = "3"
	Four      Level = "4"
	Five      Level = "5"
	Six       Level = "6"
	Graduated Level = "GRADUATED"

	// All is the export/filter wildcard.
	All = "all"
)

var (
	ErrUnknownLevel = errors.New("unknown class")

	// Sequence is every level in ascending order, terminal sink included.
	Sequence = []Level{Nursery, LKG, UKG, One, Two, Three, Four, Five, Six, Graduated}

	// Active is every level a student can be enrolled in.
	Active = Sequence[:len(Sequence)-1]

	// PreGraduation is the highest active level; promoting out of it graduates.
	PreGraduation = Six

	ranks   = make(map[Level]int, len(Sequence))
	aliases = make(map[string]Level)
)

func init() {
	for i, lvl := range Sequence {
		ranks[lvl] = i
		aliases[fold(string(lvl))] = lvl
	}
	for alias, lvl := range map[string]Level{
		"nur":      Nursery,
		"pg":       Nursery,
		"lowerkg":  LKG,
		"upperkg":  UKG,
		"graduate": Graduated,
	} {
		aliases[alias] = lvl
	}
}

// fold lowers s and drops every rune that is neither a letter nor a digit,
// so that "L.K.G.", "lkg" and "L K G" compare equal.
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse resolves a class name to its Level. "Class 1", "grade 1" and "1" all resolve to One.
func Parse(s string) (Level, error) {
	key := fold(s)
	for _, prefix := range []string{"class", "grade"} {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			key = key[len(prefix):]
			break
		}
	}
	if lvl, ok := aliases[key]; ok {
		return lvl, nil
	}
	return "", ErrUnknownLevel
}

// ParseActive is Parse restricted to levels a student can be enrolled in.
func ParseActive(s string) (Level, error) {
	lvl, err := Parse(s)
	if err != nil {
		return "", err
	}
	if lvl.IsTerminal() {
		return "", ErrUnknownLevel
	}
	return lvl, nil
}

func (l Level) String() string { return string(l) }

// Rank is the position of l in Sequence, or -1 when l is not a level.
func (l Level) Rank() int {
	if r, ok := ranks[l]; ok {
		return r
	}
	return -1
}

func (l Level) Valid() bool      { return l.Rank() >= 0 }
func (l Level) IsTerminal() bool { return l == Graduated }

// Next returns the level students at l move to. The terminal level maps to itself.
func (l Level) Next() Level {
	r := l.Rank()
	if r < 0 {
		return ""
	}
	if r == len(Sequence)-1 {
		return l
	}
	return Sequence[r+1]
}

func (l Level) Less(other Level) bool { return l.Rank() < other.Rank() }

// Descending returns the active levels from highest to lowest, the order a whole-school promotion runs in.
func Descending() []Level {
	out := make([]Level, 0, len(Active))
	for i := len(Active) - 1; i >= 0; i-- {
		out = append(out, Active[i])
	}
	return out
}
