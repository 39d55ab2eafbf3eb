package payout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrSpotCheck is wrapped by every spot-check failure.
var ErrSpotCheck = errors.New("spot check failed")

// Source is the human-maintained, name-keyed payout data.
type Source struct {
	Cities        []string                      `json:"cities"`
	PayoutsByName map[string]map[string]float64 `json:"payoutsByName"`
	Regions       *SourceRegions                `json:"regions,omitempty"`
}

// SourceRegions optionally carries the roll charts alongside the payouts.
// The compiler passes them through untouched; chart integrity is checked when
// a map definition is loaded.
type SourceRegions struct {
	RegionChart       map[string]map[string]string            `json:"regionChart"`
	DestinationCharts map[string]map[string]map[string]string `json:"destinationCharts"`
}

// LoadSource reads a name-keyed source file.
//
// Postcondition: Returns a Source with non-nil Cities and PayoutsByName, or a non-nil error.
func LoadSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading source %s: %w", path, err)
	}
	var src Source
	if err := json.Unmarshal(data, &src); err != nil {
		return Source{}, fmt.Errorf("parsing source %s: %w", path, err)
	}
	if src.Cities == nil || src.PayoutsByName == nil {
		return Source{}, fmt.Errorf("source %s: invalid structure, need cities and payoutsByName", path)
	}
	return src, nil
}

// SpotCheck asserts the compiled payout between two named cities.
type SpotCheck struct {
	From     string
	To       string
	Expected int
}

var spotCheckPattern = regexp.MustCompile(`^([^:]+):([^=]+)=(\d+)$`)

// ParseSpotChecks parses "CityA:CityB=value;CityC:CityD=value".
// Empty entries are skipped.
//
// Postcondition: Returns the parsed checks or an error naming the first malformed entry.
func ParseSpotChecks(s string) ([]SpotCheck, error) {
	var checks []SpotCheck
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := spotCheckPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("invalid check syntax: %s", part)
		}
		v, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, fmt.Errorf("invalid check value in %s: %w", part, err)
		}
		checks = append(checks, SpotCheck{From: m[1], To: m[2], Expected: v})
	}
	return checks, nil
}

// Compile turns a name-keyed Source into the id-indexed runtime form.
// City ids are 1-based positions in src.Cities.
//
// Postcondition: Returns a Compiled whose matrix passes Validate and satisfies
// every check, or an error describing the first integrity violation.
func Compile(src Source, checks []SpotCheck) (Compiled, error) {
	index := make(map[string]int, len(src.Cities))
	for i, name := range src.Cities {
		if _, dup := index[name]; dup {
			return Compiled{}, fmt.Errorf("duplicate city name: %s", name)
		}
		index[name] = i
	}

	n := len(src.Cities)
	matrix := make([][]int, n)
	set := make([][]bool, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
		set[i] = make([]bool, n)
	}

	for _, from := range sortedKeys(src.PayoutsByName) {
		i, ok := index[from]
		if !ok {
			return Compiled{}, fmt.Errorf("unknown city in payoutsByName: %s", from)
		}
		row := src.PayoutsByName[from]
		for _, to := range sortedKeys(row) {
			j, ok := index[to]
			if !ok {
				return Compiled{}, fmt.Errorf("unknown destination %q in row for %s", to, from)
			}
			raw := row[to]
			if raw < 0 || raw != math.Trunc(raw) || raw > math.MaxInt32 {
				return Compiled{}, fmt.Errorf("invalid value %v for %s → %s", raw, from, to)
			}
			v := int(raw)
			if i == j && v != 0 {
				return Compiled{}, fmt.Errorf("diagonal must be 0 at %d (%s), got %d", i, from, v)
			}
			if set[j][i] && matrix[j][i] != v {
				return Compiled{}, fmt.Errorf("asymmetry detected: %s → %s is %d but %s → %s is %d", from, to, v, to, from, matrix[j][i])
			}
			matrix[i][j], matrix[j][i] = v, v
			set[i][j], set[j][i] = true, true
		}
	}

	compiled := Compiled{Cities: append([]string(nil), src.Cities...), Matrix: matrix}
	if err := compiled.Table().Validate(); err != nil {
		return Compiled{}, err
	}
	for _, c := range checks {
		if err := compiled.Check(c); err != nil {
			return Compiled{}, err
		}
	}
	return compiled, nil
}

// Check evaluates a single spot check against the compiled matrix.
//
// Postcondition: Returns nil on match; an error wrapping ErrSpotCheck otherwise.
func (c Compiled) Check(sc SpotCheck) error {
	i, j := -1, -1
	for k, name := range c.Cities {
		if name == sc.From {
			i = k
		}
		if name == sc.To {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return fmt.Errorf("%w: unknown city in check %s:%s", ErrSpotCheck, sc.From, sc.To)
	}
	if got := c.Matrix[i][j]; got != sc.Expected {
		return fmt.Errorf("%w: %s → %s expected %d got %d", ErrSpotCheck, sc.From, sc.To, sc.Expected, got)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
