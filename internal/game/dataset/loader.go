package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/boxcars/internal/game/dice"
	"github.com/cory-johannsen/boxcars/internal/game/payout"
)

// yamlMapFile is the top-level YAML structure for map files.
type yamlMapFile struct {
	Map Definition `yaml:"map"`
}

// Definition is the YAML representation of a map.
type Definition struct {
	ID                string                               `yaml:"id"`
	Name              string                               `yaml:"name"`
	Regions           []string                             `yaml:"regions"`
	Cities            []CityDefinition                     `yaml:"cities"`
	RegionChart       map[string]map[int]string            `yaml:"region_chart"`
	DestinationCharts map[string]map[string]map[int]string `yaml:"destination_charts"`
	Aliases           []Alias                              `yaml:"aliases"`
	Disambiguations   []Disambiguation                     `yaml:"disambiguations"`
}

// CityDefinition is a city entry in a map file. Its 1-based position in the
// list is its id.
type CityDefinition struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// LoadDefinition reads a single map YAML file.
//
// Postcondition: Returns the parsed Definition or a non-nil error.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("reading map file %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses map YAML bytes.
func ParseDefinition(data []byte) (Definition, error) {
	var file yamlMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Definition{}, fmt.Errorf("parsing map YAML: %w", err)
	}
	return file.Map, nil
}

// New builds a Dataset from a map definition and an optional compiled payout
// table.
//
// Precondition: when table is non-nil its city list must match def.Cities in order.
// Postcondition: Returns a fully validated Dataset or an error describing the
// first integrity violation.
func New(def Definition, table *payout.Compiled) (*Dataset, error) {
	id, err := ParseMapID(def.ID)
	if err != nil {
		return nil, err
	}
	if len(def.Regions) == 0 {
		return nil, fmt.Errorf("map %s: no regions", id)
	}
	regionSet := make(map[string]bool, len(def.Regions))
	for _, r := range def.Regions {
		if regionSet[r] {
			return nil, fmt.Errorf("map %s: duplicate region %q", id, r)
		}
		regionSet[r] = true
	}

	d := &Dataset{
		id:           id,
		name:         def.Name,
		regions:      append([]string(nil), def.Regions...),
		byRegion:     make(map[string][]City),
		destinations: make(map[string]Chart),
	}

	seen := make(map[string]bool, len(def.Cities))
	for i, cd := range def.Cities {
		key := NormalizeName(cd.Name)
		if key == "" {
			return nil, fmt.Errorf("map %s: city %d has no name", id, i+1)
		}
		if seen[key] {
			return nil, fmt.Errorf("map %s: duplicate city name %q", id, cd.Name)
		}
		seen[key] = true
		if !regionSet[cd.Region] {
			return nil, fmt.Errorf("map %s: city %q has unknown region %q", id, cd.Name, cd.Region)
		}
		c := City{ID: i + 1, Name: cd.Name, Region: cd.Region}
		d.cities = append(d.cities, c)
		d.byRegion[c.Region] = append(d.byRegion[c.Region], c)
	}
	for r := range d.byRegion {
		cs := d.byRegion[r]
		sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
	}

	for _, a := range def.Aliases {
		if !seen[NormalizeName(a.City)] {
			return nil, fmt.Errorf("map %s: alias %q targets unknown city %q", id, a.Alias, a.City)
		}
	}
	for _, amb := range def.Disambiguations {
		targets := make([]string, 0, len(amb.ByRegion)+1)
		for _, t := range amb.ByRegion {
			targets = append(targets, t)
		}
		if amb.Fallback != "" {
			targets = append(targets, amb.Fallback)
		}
		for _, t := range targets {
			if !seen[NormalizeName(t)] {
				return nil, fmt.Errorf("map %s: disambiguation of %q targets unknown city %q", id, amb.Name, t)
			}
		}
	}
	d.names = newResolver(d.cities, def.Aliases, def.Disambiguations)

	d.regionChart, err = convertChart(def.RegionChart)
	if err != nil {
		return nil, fmt.Errorf("map %s: region chart: %w", id, err)
	}
	if err := d.regionChart.complete(); err != nil {
		return nil, fmt.Errorf("map %s: region chart: %w", id, err)
	}
	for _, col := range d.regionChart {
		for sum, region := range col {
			if !regionSet[region] {
				return nil, fmt.Errorf("map %s: region chart sum %d names unknown region %q", id, sum, region)
			}
		}
	}

	for region, raw := range def.DestinationCharts {
		if !regionSet[region] {
			return nil, fmt.Errorf("map %s: destination chart for unknown region %q", id, region)
		}
		chart, err := convertChart(raw)
		if err != nil {
			return nil, fmt.Errorf("map %s: destination chart %q: %w", id, region, err)
		}
		if err := chart.complete(); err != nil {
			return nil, fmt.Errorf("map %s: destination chart %q: %w", id, region, err)
		}
		for _, col := range chart {
			for _, name := range col {
				cid, ok := d.names.resolve(name, region)
				if !ok {
					return nil, fmt.Errorf("map %s: destination chart %q names unknown city %q", id, region, name)
				}
				if c, _ := d.City(cid); c.Region != region {
					return nil, fmt.Errorf("map %s: destination chart %q names %q from region %q", id, region, name, c.Region)
				}
			}
		}
		d.destinations[region] = chart
	}
	for _, r := range d.regions {
		if _, ok := d.destinations[r]; !ok {
			return nil, fmt.Errorf("map %s: region %q has no destination chart", id, r)
		}
	}

	if table != nil {
		if len(table.Cities) != len(d.cities) {
			return nil, fmt.Errorf("map %s: payout table has %d cities, map has %d", id, len(table.Cities), len(d.cities))
		}
		for i, name := range table.Cities {
			if NormalizeName(name) != NormalizeName(d.cities[i].Name) {
				return nil, fmt.Errorf("map %s: payout table city %d is %q, map has %q", id, i+1, name, d.cities[i].Name)
			}
		}
		m := table.Table()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("map %s: payout table: %w", id, err)
		}
		d.payouts = m
	}

	return d, nil
}

func convertChart(raw map[string]map[int]string) (Chart, error) {
	chart := make(Chart, len(raw))
	for key, col := range raw {
		p, err := dice.ParseParity(key)
		if err != nil {
			return nil, err
		}
		cells := make(map[int]string, len(col))
		for sum, v := range col {
			if sum < dice.MinSum || sum > dice.MaxSum {
				return nil, fmt.Errorf("sum %d out of range", sum)
			}
			cells[sum] = v
		}
		chart[p] = cells
	}
	return chart, nil
}

// Load reads <mapsDir>/<id>.yaml and, when present, <payoutsDir>/<id>.json.
// A missing payout file is not an error: the dataset then reports every
// payout as not found.
//
// Postcondition: Returns a validated Dataset or a non-nil error.
func Load(mapsDir, payoutsDir string, id MapID) (*Dataset, error) {
	base := strings.ToLower(string(id))
	def, err := LoadDefinition(filepath.Join(mapsDir, base+".yaml"))
	if err != nil {
		return nil, err
	}
	var table *payout.Compiled
	if payoutsDir != "" {
		c, err := payout.LoadCompiled(filepath.Join(payoutsDir, base+".json"))
		switch {
		case err == nil:
			table = &c
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return New(def, table)
}

// Catalog loads datasets on first use and caches them. Datasets are
// immutable, so one instance is shared by every caller.
type Catalog struct {
	mapsDir    string
	payoutsDir string

	mu     sync.Mutex
	loaded map[MapID]*Dataset
}

// NewCatalog creates a Catalog reading from the given directories.
func NewCatalog(mapsDir, payoutsDir string) *Catalog {
	return &Catalog{
		mapsDir:    mapsDir,
		payoutsDir: payoutsDir,
		loaded:     make(map[MapID]*Dataset),
	}
}

// Get returns the dataset for id, loading it on first use.
//
// Postcondition: Returns the cached Dataset or a load error.
func (c *Catalog) Get(id MapID) (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.loaded[id]; ok {
		return d, nil
	}
	if c.mapsDir == "" {
		return nil, fmt.Errorf("map %s not available", id)
	}
	d, err := Load(c.mapsDir, c.payoutsDir, id)
	if err != nil {
		return nil, err
	}
	c.loaded[id] = d
	return d, nil
}
