package dataset

import "strings"

var nameReplacer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"`", "'",
	`""`, `"`,
)

// NormalizeName folds a city name for lookup: lower case, trimmed, internal
// whitespace collapsed, apostrophe variants unified.
func NormalizeName(s string) string {
	s = nameReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// Alias maps an alternate spelling onto a canonical city name.
type Alias struct {
	Alias string `yaml:"alias"`
	City  string `yaml:"city"`
}

// Disambiguation resolves a name shared by several cities using the region
// the name was rolled in.
type Disambiguation struct {
	Name     string            `yaml:"name"`
	ByRegion map[string]string `yaml:"by_region"`
	Fallback string            `yaml:"fallback"`
}

// resolver implements name → id resolution with disambiguation and aliases.
type resolver struct {
	ids     map[string]int
	aliases map[string]string
	ambig   map[string]Disambiguation
}

func newResolver(cities []City, aliases []Alias, ambig []Disambiguation) *resolver {
	r := &resolver{
		ids:     make(map[string]int, len(cities)),
		aliases: make(map[string]string, len(aliases)),
		ambig:   make(map[string]Disambiguation, len(ambig)),
	}
	for _, c := range cities {
		r.ids[NormalizeName(c.Name)] = c.ID
	}
	for _, a := range aliases {
		r.aliases[NormalizeName(a.Alias)] = NormalizeName(a.City)
	}
	for _, d := range ambig {
		r.ambig[NormalizeName(d.Name)] = d
	}
	return r
}

// resolve looks a name up, consulting the disambiguation table first, then
// the city list, then aliases.
func (r *resolver) resolve(name, region string) (int, bool) {
	key := NormalizeName(name)
	if key == "" {
		return 0, false
	}
	if d, ok := r.ambig[key]; ok {
		target, ok := d.ByRegion[region]
		if !ok {
			target = d.Fallback
		}
		id, ok := r.ids[NormalizeName(target)]
		return id, ok
	}
	if id, ok := r.ids[key]; ok {
		return id, true
	}
	if canonical, ok := r.aliases[key]; ok {
		id, ok := r.ids[canonical]
		return id, ok
	}
	return 0, false
}
