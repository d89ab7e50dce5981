package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format of start_date and end_date.
const DateLayout = "2006-01-02"

const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

var ErrInvalidFilter = errors.New("query: invalid filter")

// Tristate is an optional boolean that stays comparable with ==.
type Tristate int8

const (
	Any Tristate = iota
	Yes
	No
)

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "true"
	case No:
		return "false"
	default:
		return ""
	}
}

// Filter is the call feed predicate plus its pagination cursor.
//
// Filter is a plain comparable value: two filters select the same page iff
// they are ==.
type Filter struct {
	Number    string
	Direction string
	Missed    Tristate
	StartDate string
	EndDate   string
	Page      int
	PageSize  int
}

// Param is one query-string pair.
type Param struct {
	Name  string
	Value string
}

// Field order is part of the cache key; do not reorder.
const (
	fieldNumber    = "number"
	fieldDirection = "direction"
	fieldMissed    = "missed"
	fieldStartDate = "start_date"
	fieldEndDate   = "end_date"
	fieldPage      = "page"
	fieldPageSize  = "page_size"
)

// BuildQuery returns the present, non-empty fields of f in canonical order.
func BuildQuery(f Filter) []Param {
	out := make([]Param, 0, 7)
	add := func(name, value string) {
		if value != "" {
			out = append(out, Param{Name: name, Value: value})
		}
	}
	add(fieldNumber, strings.TrimSpace(f.Number))
	add(fieldDirection, f.Direction)
	add(fieldMissed, f.Missed.String())
	add(fieldStartDate, f.StartDate)
	add(fieldEndDate, f.EndDate)
	if f.Page > 0 {
		add(fieldPage, strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		add(fieldPageSize, strconv.Itoa(f.PageSize))
	}
	return out
}

// Encode renders params as a URL query string, preserving their order.
func Encode(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Key is the canonical cache key of f.
func Key(f Filter) string { return Encode(BuildQuery(f)) }

// Equal reports whether a and b select the same page.
func (f Filter) Equal(other Filter) bool { return f == other }

// ParseQuery restores a Filter from a query string produced by Encode.
// Unknown parameters are ignored.
func ParseQuery(raw string) (Filter, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	f := Filter{
		Number:    values.Get(fieldNumber),
		Direction: values.Get(fieldDirection),
		StartDate: values.Get(fieldStartDate),
		EndDate:   values.Get(fieldEndDate),
	}
	switch v := values.Get(fieldMissed); v {
	case "":
	case "true", "1":
		f.Missed = Yes
	case "false", "0":
		f.Missed = No
	default:
		return Filter{}, fmt.Errorf("%w: missed must be a boolean, got %q", ErrInvalidFilter, v)
	}
	if f.Page, err = atoiOrZero(values.Get(fieldPage)); err != nil {
		return Filter{}, fmt.Errorf("%w: page: %v", ErrInvalidFilter, err)
	}
	if f.PageSize, err = atoiOrZero(values.Get(fieldPageSize)); err != nil {
		return Filter{}, fmt.Errorf("%w: page_size: %v", ErrInvalidFilter, err)
	}
	return f, f.Validate()
}

// Validate rejects filters the server would refuse.
func (f Filter) Validate() error {
	var errs []error
	switch f.Direction {
	case "", DirectionInbound, DirectionOutbound:
	default:
		errs = append(errs, fmt.Errorf("direction must be %s or %s, got %q", DirectionInbound, DirectionOutbound, f.Direction))
	}

	var start, end time.Time
	var err error
	if f.StartDate != "" {
		if start, err = time.Parse(DateLayout, f.StartDate); err != nil {
			errs = append(errs, fmt.Errorf("start_date must be %s, got %q", DateLayout, f.StartDate))
		}
	}
	if f.EndDate != "" {
		if end, err = time.Parse(DateLayout, f.EndDate); err != nil {
			errs = append(errs, fmt.Errorf("end_date must be %s, got %q", DateLayout, f.EndDate))
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, errors.New("end_date is before start_date"))
	}
	if f.Page < 0 || f.PageSize < 0 {
		errs = append(errs, errors.New("page and page_size must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidFilter, errors.Join(errs...))
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
