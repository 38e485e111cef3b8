/*
Package factory provides catalog file to Go reference data conversion.

PURPOSE:
  Converts a reference catalog (YAML, or JSON since YAML is a superset)
  into the activity tiers, KPI definitions, role table and task targets the
  engine reads. Admins edit the catalog file; the factory validates it and
  builds the proper Go values, and Seed loads them into a store.

CATALOG SCHEMA:
  roles:
    - name: Ajudante de Armazém
      branch: multi_activity        # single_activity | multi_activity | task_count
  activities:
    - name: Separação
      unit: caixas
      tiers:
        - level: Nível 1
          minimum_productivity: 0
          unit_value: 0.05
  kpis:
    - id: kpi-pontualidade
      name: Pontualidade
      target: 100
      weight: 1
      role: Conferente
      shift: Geral                  # "Geral" matches every shift
      active: true
  task_targets:
    Armazenagem: 5m                 # time.ParseDuration syntax

VALIDATION:
  - Every activity has at least one tier
  - Tier thresholds are unique within an activity (accent/case-insensitive name)
  - Unit values and thresholds are non-negative decimals
  - Task targets are positive durations
  - Branch names are known

USAGE:
  cat, err := factory.LoadCatalog("catalog.yaml")
  if err != nil {
      log.Fatal(err)
  }
  if err := cat.Seed(ctx, store); err != nil {
      log.Fatal(err)
  }
  calc := compensation.NewCalculator(store, cat.Roles)

SEE ALSO:
  - compensation/types.go: ActivityTier, KPIDefinition, RoleTable
  - tasklog/filter.go: TargetTable
  - watch.go: hot reload of the catalog file
*/
package factory

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/tasklog"
	"github.com/warp/incentive-engine/textfold"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

// CatalogFile is the on-disk representation of the reference catalog.
type CatalogFile struct {
	Roles       []RoleEntry       `yaml:"roles" json:"roles"`
	Activities  []ActivityEntry   `yaml:"activities" json:"activities"`
	KPIs        []KPIEntry        `yaml:"kpis" json:"kpis"`
	TaskTargets map[string]string `yaml:"task_targets" json:"task_targets"`
}

// RoleEntry maps a role to a calculation branch.
type RoleEntry struct {
	Name   string `yaml:"name" json:"name"`
	Branch string `yaml:"branch" json:"branch"`
}

// ActivityEntry is one activity with its tiers.
type ActivityEntry struct {
	Name  string      `yaml:"name" json:"name"`
	Unit  string      `yaml:"unit" json:"unit"`
	Tiers []TierEntry `yaml:"tiers" json:"tiers"`
}

// TierEntry is one productivity level.
type TierEntry struct {
	Level               string `yaml:"level" json:"level"`
	MinimumProductivity Number `yaml:"minimum_productivity" json:"minimum_productivity"`
	UnitValue           Number `yaml:"unit_value" json:"unit_value"`
}

// KPIEntry is one KPI definition.
type KPIEntry struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Target Number `yaml:"target" json:"target"`
	Weight Number `yaml:"weight" json:"weight"`
	Role   string `yaml:"role" json:"role"`
	Shift  string `yaml:"shift" json:"shift"`
	Active *bool  `yaml:"active,omitempty" json:"active,omitempty"` // Default true
}

// Number is a decimal written as a YAML scalar, quoted or not.
type Number struct {
	decimal.Decimal
	set bool
}

// UnmarshalYAML keeps the literal text so 0.10 is not rounded through float64.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	n.Decimal = d
	n.set = true
	return nil
}

// MarshalYAML writes the decimal as a plain scalar.
func (n Number) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: n.String()}, nil
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is validated reference data ready for the engine.
type Catalog struct {
	Tiers   []compensation.ActivityTier
	KPIs    []compensation.KPIDefinition
	Roles   compensation.RoleTable
	Targets tasklog.TargetTable
}

// Seeder receives a full catalog. *sqlite.Store implements it.
type Seeder interface {
	ReplaceCatalog(ctx context.Context, tiers []compensation.ActivityTier, kpis []compensation.KPIDefinition, targets tasklog.TargetTable) error
}

// Seed replaces the reference tables of s with this catalog.
func (c *Catalog) Seed(ctx context.Context, s Seeder) error {
	if err := s.ReplaceCatalog(ctx, c.Tiers, c.KPIs, c.Targets); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	return nil
}

// StaticData returns an in-memory reference data source for this catalog.
func (c *Catalog) StaticData() *compensation.StaticData {
	return compensation.NewStaticData(c.Tiers, c.KPIs)
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads and parses a catalog file.
// An empty path returns the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog parses YAML or JSON catalog text.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cf CatalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return FromFile(cf)
}

// FromFile validates a CatalogFile and converts it.
func FromFile(cf CatalogFile) (*Catalog, error) {
	roles, err := parseRoles(cf.Roles)
	if err != nil {
		return nil, err
	}

	tiers, err := parseActivities(cf.Activities)
	if err != nil {
		return nil, err
	}

	kpis, err := parseKPIs(cf.KPIs)
	if err != nil {
		return nil, err
	}

	targets, err := parseTargets(cf.TaskTargets)
	if err != nil {
		return nil, err
	}

	return &Catalog{Tiers: tiers, KPIs: kpis, Roles: roles, Targets: targets}, nil
}

// ToFile converts a Catalog back to its file form.
func (c *Catalog) ToFile() CatalogFile {
	cf := CatalogFile{TaskTargets: make(map[string]string, c.Targets.Len())}

	// Tiers are written lowest threshold first.
	sorted := compensation.SortTiers(c.Tiers)
	byKey := map[string]int{}
	for k := len(sorted) - 1; k >= 0; k-- {
		t := sorted[k]
		key := textfold.Key(t.ActivityName)
		i, ok := byKey[key]
		if !ok {
			i = len(cf.Activities)
			byKey[key] = i
			cf.Activities = append(cf.Activities, ActivityEntry{Name: t.ActivityName, Unit: t.Unit})
		}
		cf.Activities[i].Tiers = append(cf.Activities[i].Tiers, TierEntry{
			Level:               t.LevelLabel,
			MinimumProductivity: Number{Decimal: t.MinimumProductivity, set: true},
			UnitValue:           Number{Decimal: t.UnitValue, set: true},
		})
	}

	for _, k := range c.KPIs {
		active := k.Active
		cf.KPIs = append(cf.KPIs, KPIEntry{
			ID:     k.ID,
			Name:   k.Name,
			Target: Number{Decimal: k.TargetValue, set: true},
			Weight: Number{Decimal: k.BonusWeight, set: true},
			Role:   k.Role,
			Shift:  k.Shift,
			Active: &active,
		})
	}

	for _, tt := range c.Targets.Targets() {
		cf.TaskTargets[tt.Type] = tt.Target.String()
	}
	return cf
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRoles(entries []RoleEntry) (compensation.RoleTable, error) {
	m := make(map[string]compensation.Branch, len(entries))
	for i, r := range entries {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return compensation.RoleTable{}, fmt.Errorf("roles[%d]: name is required", i)
		}
		b, err := parseBranch(r.Branch)
		if err != nil {
			return compensation.RoleTable{}, fmt.Errorf("role %q: %w", name, err)
		}
		m[name] = b
	}
	return compensation.NewRoleTable(m), nil
}

func parseBranch(s string) (compensation.Branch, error) {
	switch compensation.Branch(strings.TrimSpace(s)) {
	case compensation.BranchSingleActivity, "":
		return compensation.BranchSingleActivity, nil
	case compensation.BranchMultiActivity:
		return compensation.BranchMultiActivity, nil
	case compensation.BranchTaskCount:
		return compensation.BranchTaskCount, nil
	default:
		return "", fmt.Errorf("unknown branch %q", s)
	}
}

func parseActivities(entries []ActivityEntry) ([]compensation.ActivityTier, error) {
	var tiers []compensation.ActivityTier
	seen := map[string]string{}

	for i, a := range entries {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return nil, fmt.Errorf("activities[%d]: name is required", i)
		}
		key := textfold.Key(name)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("activity %q: duplicates %q", name, prev)
		}
		seen[key] = name

		if len(a.Tiers) == 0 {
			return nil, fmt.Errorf("activity %q: at least one tier is required", name)
		}

		thresholds := map[string]bool{}
		for j, t := range a.Tiers {
			if !t.MinimumProductivity.set || !t.UnitValue.set {
				return nil, fmt.Errorf("activity %q tier %d: minimum_productivity and unit_value are required", name, j)
			}
			if t.MinimumProductivity.IsNegative() || t.UnitValue.IsNegative() {
				return nil, fmt.Errorf("activity %q tier %d: values must not be negative", name, j)
			}
			th := t.MinimumProductivity.String()
			if thresholds[th] {
				return nil, fmt.Errorf("activity %q: duplicate tier threshold %s", name, th)
			}
			thresholds[th] = true

			label := strings.TrimSpace(t.Level)
			if label == "" {
				label = fmt.Sprintf("Nível %d", j+1)
			}
			tiers = append(tiers, compensation.ActivityTier{
				ActivityName:        name,
				LevelLabel:          label,
				UnitValue:           t.UnitValue.Decimal,
				MinimumProductivity: t.MinimumProductivity.Decimal,
				Unit:                strings.TrimSpace(a.Unit),
			})
		}
	}
	return tiers, nil
}

func parseKPIs(entries []KPIEntry) ([]compensation.KPIDefinition, error) {
	kpis := make([]compensation.KPIDefinition, 0, len(entries))
	ids := map[string]bool{}

	for i, k := range entries {
		name := strings.TrimSpace(k.Name)
		if name == "" {
			return nil, fmt.Errorf("kpis[%d]: name is required", i)
		}
		id := strings.TrimSpace(k.ID)
		if id == "" {
			id = "kpi-" + strings.ReplaceAll(textfold.Key(name+" "+k.Role+" "+k.Shift), " ", "-")
		}
		if ids[id] {
			return nil, fmt.Errorf("kpi %q: duplicate id %q", name, id)
		}
		ids[id] = true

		shift := strings.TrimSpace(k.Shift)
		if shift == "" {
			shift = compensation.AnyShift
		}
		active := true
		if k.Active != nil {
			active = *k.Active
		}
		kpis = append(kpis, compensation.KPIDefinition{
			ID:          id,
			Name:        name,
			TargetValue: k.Target.Decimal,
			BonusWeight: k.Weight.Decimal,
			Shift:       shift,
			Role:        strings.TrimSpace(k.Role),
			Active:      active,
		})
	}
	return kpis, nil
}

func parseTargets(entries map[string]string) (tasklog.TargetTable, error) {
	if len(entries) == 0 {
		return tasklog.DefaultTargets(), nil
	}
	targets := make(map[string]time.Duration, len(entries))
	for name, raw := range entries {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return tasklog.TargetTable{}, fmt.Errorf("task target %q: %w", name, err)
		}
		if d <= 0 {
			return tasklog.TargetTable{}, fmt.Errorf("task target %q: must be positive", name)
		}
		targets[name] = d
	}
	return tasklog.NewTargetTable(targets), nil
}
