package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// DefaultSurveySample is the number of rows Survey inspects by default.
const DefaultSurveySample = 10000

// FieldSurvey describes one field seen in the sampled rows.
type FieldSurvey struct {
	Name     string        `json:"name"`
	Types    []string      `json:"types"`
	Examples []interface{} `json:"examples"`
	Present  int           `json:"present"`
}

// Count is a labelled tally.
type Count struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// NumberRange summarises a numeric field.
type NumberRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// SchemaSurvey is the field/type survey of a raw export plus a few business
// counts about the sampled rows.
type SchemaSurvey struct {
	Source       string        `json:"source"`
	Sampled      int           `json:"sampled"`
	Fields       []FieldSurvey `json:"fields"`
	Hotels       []string      `json:"hotels"`
	RoomTypes    []Count       `json:"room_types"`
	Meals        []Count       `json:"meals"`
	FirstCheckIn string        `json:"first_check_in,omitempty"`
	LastCheckIn  string        `json:"last_check_in,omitempty"`
	CheckIns     int           `json:"unique_check_ins"`
	Price        *NumberRange  `json:"price,omitempty"`
	Availability *NumberRange  `json:"availability,omitempty"`
	SoldOut      int           `json:"sold_out"`
}

const maxExamples = 3

// SurveyFile runs Survey over the file at path ("-" reads stdin).
func SurveyFile(ctx context.Context, path string, sample int) (*SchemaSurvey, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot file: %w", err)
		}
		defer fh.Close()
		r = fh
	}
	s, err := Survey(ctx, r, sample)
	if err != nil {
		return nil, err
	}
	s.Source = (&File{Path: path}).Describe()
	return s, nil
}

// Survey inspects up to sample rows (all rows when sample <= 0) and reports
// the JSON type(s) of every field with a few example values.
func Survey(ctx context.Context, r io.Reader, sample int) (*SchemaSurvey, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return &SchemaSurvey{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot data: %w", err)
	}

	acc := newSurveyAcc()
	err = eachObject(ctx, br, first, func(raw json.RawMessage) bool {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var m map[string]interface{}
		if dec.Decode(&m) != nil || m == nil {
			return true
		}
		acc.add(m)
		return sample <= 0 || acc.sampled < sample
	})
	if err != nil {
		return nil, err
	}
	return acc.result(), nil
}

type surveyAcc struct {
	sampled  int
	fields   map[string]*FieldSurvey
	types    map[string]map[string]bool
	hotels   map[string]bool
	rooms    map[string]int
	meals    map[string]int
	checkIns map[string]bool
	price    *NumberRange
	avail    *NumberRange
	soldOut  int
}

func newSurveyAcc() *surveyAcc {
	return &surveyAcc{
		fields:   make(map[string]*FieldSurvey),
		types:    make(map[string]map[string]bool),
		hotels:   make(map[string]bool),
		rooms:    make(map[string]int),
		meals:    make(map[string]int),
		checkIns: make(map[string]bool),
	}
}

func (a *surveyAcc) add(m map[string]interface{}) {
	a.sampled++
	for name, v := range m {
		f, ok := a.fields[name]
		if !ok {
			f = &FieldSurvey{Name: name}
			a.fields[name] = f
			a.types[name] = make(map[string]bool)
		}
		f.Present++
		a.types[name][jsonType(v)] = true
		if len(f.Examples) < maxExamples {
			f.Examples = append(f.Examples, v)
		}
	}

	a.hotels[fmt.Sprintf("%v (ID: %v)", m["raw_hotel_name"], m["raw_hotel_id"])] = true
	a.rooms[fmt.Sprint(m["raw_room_name"])]++
	a.meals[fmt.Sprint(m["raw_meal"])]++
	if s, ok := m[FieldCheckIn].(string); ok && s != "" {
		a.checkIns[s] = true
	}
	if p, ok := number(m["raw_price_amount"]); ok && p != 0 {
		a.price = extend(a.price, p)
	}
	if v, ok := number(m[FieldAvailability]); ok {
		a.avail = extend(a.avail, v)
	}
	if b, ok := m["raw_room_is_sold_out"].(bool); ok && b {
		a.soldOut++
	}
}

func (a *surveyAcc) result() *SchemaSurvey {
	s := &SchemaSurvey{Sampled: a.sampled, SoldOut: a.soldOut, CheckIns: len(a.checkIns)}
	for name, f := range a.fields {
		for t := range a.types[name] {
			f.Types = append(f.Types, t)
		}
		sort.Strings(f.Types)
		s.Fields = append(s.Fields, *f)
	}
	sort.Slice(s.Fields, func(i, j int) bool { return s.Fields[i].Name < s.Fields[j].Name })

	for h := range a.hotels {
		s.Hotels = append(s.Hotels, h)
	}
	sort.Strings(s.Hotels)
	s.RoomTypes = tally(a.rooms, a.sampled)
	s.Meals = tally(a.meals, a.sampled)

	if len(a.checkIns) > 0 {
		dates := make([]string, 0, len(a.checkIns))
		for d := range a.checkIns {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		s.FirstCheckIn, s.LastCheckIn = dates[0], dates[len(dates)-1]
	}
	s.Price = finish(a.price)
	s.Availability = finish(a.avail)
	return s
}

// tally orders counts most common first, ties by label.
func tally(m map[string]int, total int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		c := Count{Label: k, Count: n}
		if total > 0 {
			c.Pct = float64(n) / float64(total) * 100
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// extend folds v into r; Mean holds the running sum until finish.
func extend(r *NumberRange, v float64) *NumberRange {
	if r == nil {
		return &NumberRange{Min: v, Max: v, Mean: v, Count: 1}
	}
	if v < r.Min {
		r.Min = v
	}
	if v > r.Max {
		r.Max = v
	}
	r.Mean += v
	r.Count++
	return r
}

func finish(r *NumberRange) *NumberRange {
	if r != nil && r.Count > 0 {
		r.Mean /= float64(r.Count)
	}
	return r
}

func number(v interface{}) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

// jsonType names the JSON type of a decoded value.
func jsonType(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return "int"
		}
		return "float"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
