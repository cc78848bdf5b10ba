// Package scenario describes BIST scenarios declaratively and runs them
// against the simulator.
package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/espressif/esp-bist/pkg/lib/gdbscript"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Scenario is one simulator run with the markers it must (and must not) print.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Expect lists markers that must all appear in the console.
	Expect []string `yaml:"expect"`
	// Forbid lists markers that fail the scenario if seen while waiting.
	Forbid []string `yaml:"forbid,omitempty"`
	// Poll bounds each wait for the next console line. Zero uses the configured default.
	Poll  time.Duration    `yaml:"poll,omitempty"`
	Fault *gdbscript.Fault `yaml:"fault,omitempty"`
	// Params expands the scenario once per combination of values,
	// substituting {key} in names, markers and the fault.
	Params map[string][]string `yaml:"params,omitempty"`

	// Filled in from the enclosing suite.
	Suite string `yaml:"-"`
	Dir   string `yaml:"-"`
}

// Ref returns the scenario's "suite/name" reference.
func (s Scenario) Ref() string {
	return s.Suite + "/" + s.Name
}

// Suite groups scenarios that share a firmware test directory.
type Suite struct {
	Name      string     `yaml:"name"`
	Dir       string     `yaml:"dir"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Catalog is a set of suites with every parameterised scenario expanded.
type Catalog struct {
	Suites []Suite `yaml:"suites"`
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtinCatalog)
}

// Load reads a catalog file, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes, expands and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for i := range c.Suites {
		suite := &c.Suites[i]
		var expanded []Scenario
		for _, sc := range suite.Scenarios {
			sc.Suite = suite.Name
			sc.Dir = suite.Dir
			expanded = append(expanded, expand(sc)...)
		}
		suite.Scenarios = expanded
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names are unique and every scenario can be run.
func (c *Catalog) Validate() error {
	suites := map[string]bool{}
	for _, suite := range c.Suites {
		if suite.Name == "" || strings.Contains(suite.Name, "/") {
			return fmt.Errorf("invalid suite name %q", suite.Name)
		}
		if suites[suite.Name] {
			return fmt.Errorf("duplicate suite %q", suite.Name)
		}
		suites[suite.Name] = true
		if suite.Dir == "" {
			return fmt.Errorf("suite %q has no dir", suite.Name)
		}

		names := map[string]bool{}
		for _, sc := range suite.Scenarios {
			if sc.Name == "" || strings.Contains(sc.Name, "/") {
				return fmt.Errorf("suite %q: invalid scenario name %q", suite.Name, sc.Name)
			}
			if names[sc.Name] {
				return fmt.Errorf("duplicate scenario %q", sc.Ref())
			}
			names[sc.Name] = true
			if len(sc.Expect) == 0 {
				return fmt.Errorf("scenario %q expects no markers", sc.Ref())
			}
			if sc.Poll < 0 {
				return fmt.Errorf("scenario %q has a negative poll timeout", sc.Ref())
			}
			if sc.Fault != nil {
				if err := sc.Fault.Validate(); err != nil {
					return fmt.Errorf("scenario %q: %w", sc.Ref(), err)
				}
			}
		}
	}
	return nil
}

// Scenarios returns every scenario in catalog order.
func (c *Catalog) Scenarios() []Scenario {
	var all []Scenario
	for _, suite := range c.Suites {
		all = append(all, suite.Scenarios...)
	}
	return all
}

// Select resolves references of the form "suite", "suite/name" or
// "suite/pattern" (path.Match syntax). No references selects everything.
func (c *Catalog) Select(refs ...string) ([]Scenario, error) {
	if len(refs) == 0 {
		return c.Scenarios(), nil
	}
	var selected []Scenario
	seen := map[string]bool{}
	for _, ref := range refs {
		suiteName, pattern, found := strings.Cut(ref, "/")
		if !found {
			pattern = "*"
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("bad scenario pattern %q: %w", ref, err)
		}
		matched := false
		for _, suite := range c.Suites {
			if suite.Name != suiteName {
				continue
			}
			for _, sc := range suite.Scenarios {
				if ok, _ := path.Match(pattern, sc.Name); !ok {
					continue
				}
				matched = true
				if !seen[sc.Ref()] {
					seen[sc.Ref()] = true
					selected = append(selected, sc)
				}
			}
		}
		if !matched {
			return nil, fmt.Errorf("no scenario matches %q", ref)
		}
	}
	return selected, nil
}

// expand returns one scenario per combination of parameter values.
func expand(sc Scenario) []Scenario {
	if len(sc.Params) == 0 {
		return []Scenario{sc}
	}
	keys := make([]string, 0, len(sc.Params))
	for k := range sc.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]string{{}}
	for _, k := range keys {
		var next []map[string]string
		for _, combo := range combos {
			for _, v := range sc.Params[k] {
				m := make(map[string]string, len(combo)+1)
				for ck, cv := range combo {
					m[ck] = cv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		combos = next
	}

	out := make([]Scenario, 0, len(combos))
	for _, combo := range combos {
		out = append(out, substitute(sc, combo))
	}
	return out
}

func substitute(sc Scenario, values map[string]string) Scenario {
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	each := func(in []string) []string {
		if in == nil {
			return nil
		}
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = r.Replace(s)
		}
		return out
	}

	sc.Name = r.Replace(sc.Name)
	sc.Description = r.Replace(sc.Description)
	sc.Expect = each(sc.Expect)
	sc.Forbid = each(sc.Forbid)
	if sc.Fault != nil {
		sc.Fault = &gdbscript.Fault{
			Breakpoint: r.Replace(sc.Fault.Breakpoint),
			Mutations:  each(sc.Fault.Mutations),
		}
	}
	sc.Params = nil
	return sc
}
