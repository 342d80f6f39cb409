package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const SchemaVersion = 1

// maxUnwrap bounds how many JSON-in-a-string layers Decode peels off.
const maxUnwrap = 3

var (
	admissionKeys = []string{"admissionFee", "admission_fee", "admission"}
	monthlyKeys   = []string{"monthlyFee", "monthly_fee", "monthly", "tuition_fee"}
	computerKeys  = []string{"computerFee", "computer_fee", "comp_fee", "compFee", "computer"}
)

type (
	envelope struct {
		Version int    `json:"version"`
		Months  Months `json:"months"`
	}

	// DecodeResult is a well-formed set of months, possibly recovered from a damaged document.
	DecodeResult struct {
		Months   Months
		Repaired bool
		Reasons  []string
	}
)

func (r DecodeResult) Reason() string { return strings.Join(r.Reasons, "; ") }

func (r *DecodeResult) repair(format string, args ...interface{}) {
	r.Repaired = true
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

// Encode renders months as a versioned document.
func Encode(months Months) ([]byte, error) {
	return json.Marshal(envelope{Version: SchemaVersion, Months: months})
}

// Decode reads a stored ledger document. It accepts the versioned envelope, a legacy bare
// month mapping and double-encoded strings of either. Anything else is repaired: a damaged
// document becomes all-zero, a damaged month is zeroed on its own. Decode never fails.
func Decode(doc []byte) DecodeResult {
	var res DecodeResult

	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
		res.repair("empty document")
		return res
	}

	val, err := parseJSON(doc)
	if err != nil {
		res.repair("invalid JSON: %v", err)
		return res
	}

	val, ok := unwrap(val, &res)
	if !ok {
		return res
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		res.repair("unexpected document shape %s", shapeOf(val))
		return res
	}

	if months, isEnvelope := obj["months"]; isEnvelope {
		if v, ok := obj["version"]; !ok || !isVersion(v, SchemaVersion) {
			res.repair("unsupported schema version %v", obj["version"])
			return res
		}
		if months, ok = unwrap(months, &res); !ok {
			return res
		}
		obj, ok = months.(map[string]interface{})
		if !ok {
			res.repair("unexpected months shape %s", shapeOf(months))
			return res
		}
	}

	decodeMonths(obj, &res)
	return res
}

func parseJSON(b []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var val interface{}
	if err := dec.Decode(&val); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after offset %d", dec.InputOffset())
	}
	return val, nil
}

// unwrap peels double-encoded layers and rejects the character-sequence shape.
func unwrap(val interface{}, res *DecodeResult) (interface{}, bool) {
	for i := 0; i < maxUnwrap; i++ {
		s, ok := val.(string)
		if !ok {
			break
		}
		inner, err := parseJSON([]byte(s))
		if err != nil {
			res.repair("string is not a JSON document")
			return nil, false
		}
		val = inner
	}

	switch v := val.(type) {
	case string:
		res.repair("too many encoding layers")
		return nil, false
	case []interface{}:
		if isCharSequence(v) {
			res.repair("character-sequence document")
		} else {
			res.repair("unexpected document shape array")
		}
		return nil, false
	case map[string]interface{}:
		if isIndexKeyed(v) {
			res.repair("character-sequence document")
			return nil, false
		}
	}
	return val, true
}

func decodeMonths(obj map[string]interface{}, res *DecodeResult) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[Month]bool, MonthsInYear)
	recognized := 0
	for _, key := range keys {
		m, err := ParseMonth(key)
		if err != nil || isNumericKey(key) {
			res.repair("dropped unknown month %q", key)
			continue
		}
		recognized++
		if seen[m] {
			res.repair("duplicate entries for %s", m)
			res.Months[m] = Entry{}
			continue
		}
		seen[m] = true

		entry, err := decodeEntry(obj[key])
		if err != nil {
			res.repair("%s: %v", m, err)
			continue
		}
		res.Months[m] = entry
	}

	if len(obj) > 0 && recognized == 0 {
		res.Months = Months{}
		res.repair("no month found in document")
	}
}

func decodeEntry(val interface{}) (Entry, error) {
	if val == nil {
		return Entry{}, nil
	}
	obj, ok := val.(map[string]interface{})
	if !ok {
		return Entry{}, fmt.Errorf("entry is %s, not an object", shapeOf(val))
	}

	var entry Entry
	var err error
	if entry.AdmissionFee, err = decodeAmount(obj, admissionKeys); err != nil {
		return Entry{}, err
	}
	if entry.MonthlyFee, err = decodeAmount(obj, monthlyKeys); err != nil {
		return Entry{}, err
	}
	if entry.ComputerFee, err = decodeAmount(obj, computerKeys); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// decodeAmount reads the first present key of `keys`. Missing or null amounts are zero.
func decodeAmount(obj map[string]interface{}, keys []string) (decimal.Decimal, error) {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			continue
		}

		var d decimal.Decimal
		var err error
		switch v := raw.(type) {
		case json.Number:
			d, err = decimal.NewFromString(v.String())
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			d, err = decimal.NewFromString(strings.TrimSpace(v))
		default:
			err = fmt.Errorf("is %s", shapeOf(raw))
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s %v", key, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("%s is negative", key)
		}
		return d, nil
	}
	return decimal.Zero, nil
}

func isVersion(v interface{}, want int) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	i, err := n.Int64()
	return err == nil && int(i) == want
}

// isCharSequence reports whether arr is a document stored one character per element.
func isCharSequence(arr []interface{}) bool {
	if len(arr) == 0 {
		return false
	}
	for _, el := range arr {
		s, ok := el.(string)
		if !ok || len([]rune(s)) != 1 {
			return false
		}
	}
	return true
}

// isIndexKeyed reports whether obj is keyed "0", "1", ... like a string spread into an object.
func isIndexKeyed(obj map[string]interface{}) bool {
	if len(obj) == 0 {
		return false
	}
	for i := 0; i < len(obj); i++ {
		if _, ok := obj[strconv.Itoa(i)]; !ok {
			return false
		}
	}
	return true
}

func isNumericKey(key string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(key))
	return err == nil
}

func shapeOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}
