package filter

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Query parameter names understood by the event stream endpoint.
const (
	ParamCodes     = "codes"
	ParamTypes     = "types"
	ParamLanguages = "languages"
)

// ErrEmptyFilterSet is returned when an empty FilterSet is asked to produce a subscription URL.
// An empty set means "do not subscribe", never "subscribe to everything".
var ErrEmptyFilterSet = errors.New("filter set is empty")

// FilterSet holds the three independent filter dimensions. Members are unique and non-empty
// within each dimension; use New to build one from raw consumer input.
type FilterSet struct {
	Codes     []string `json:"codes"`
	Languages []string `json:"languages"`
	Types     []string `json:"types"`
}

// New normalizes raw dimension members into a FilterSet: whitespace is trimmed, empty
// members are dropped and duplicates keep their first occurrence.
func New(codes, languages, types []string) FilterSet {
	return FilterSet{
		Codes:     normalize(codes),
		Languages: normalize(languages),
		Types:     normalize(types),
	}
}

// Normalized returns a copy of f with every dimension normalized as New does.
func (f FilterSet) Normalized() FilterSet {
	return New(f.Codes, f.Languages, f.Types)
}

// IsEmpty reports whether the union of all three dimensions is empty.
func (f FilterSet) IsEmpty() bool {
	return len(f.Codes) == 0 && len(f.Languages) == 0 && len(f.Types) == 0
}

// Size is the total number of members across dimensions.
func (f FilterSet) Size() int {
	return len(f.Codes) + len(f.Languages) + len(f.Types)
}

// Values builds the query parameters for f, one per non-empty dimension.
func (f FilterSet) Values() url.Values {
	v := url.Values{}
	setJoined(v, ParamCodes, f.Codes)
	setJoined(v, ParamTypes, f.Types)
	setJoined(v, ParamLanguages, f.Languages)
	return v
}

// Encode appends the filter parameters to endpointBase. Parameters already present on the
// base URL are kept unless a dimension overrides them.
func (f FilterSet) Encode(endpointBase string) (string, error) {
	if f.IsEmpty() {
		return "", ErrEmptyFilterSet
	}
	u, err := url.Parse(endpointBase)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpointBase, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: scheme and host are required", endpointBase)
	}

	q := u.Query()
	for key, vals := range f.Values() {
		q[key] = vals
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f FilterSet) String() string {
	return fmt.Sprintf("codes=%v languages=%v types=%v", f.Codes, f.Languages, f.Types)
}

// Split parses a comma separated list, as used by config values and CLI flags.
func Split(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	return normalize(strings.Split(csv, ","))
}

func setJoined(v url.Values, key string, members []string) {
	if len(members) == 0 {
		return
	}
	v.Set(key, strings.Join(members, ","))
}

func normalize(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
