package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"hypergame/internal/resolve"
)

// ErrInvalidSettings is returned for malformed or inconsistent HNF settings.
var ErrInvalidSettings = errors.New("invalid settings")

// ExcludedMarker marks a column action as impossible in a belief row.
const ExcludedMarker = "X"

// Value is a settings cell: a literal number, an expression over resolved
// constants, or the excluded marker.
type Value struct {
	number   float64
	expr     string
	excluded bool
	literal  bool
}

// Number returns a literal cell.
func Number(f float64) Value { return Value{number: f, literal: true} }

// Expression returns an expression cell.
func Expression(s string) Value { return Value{expr: s} }

// Excluded returns the excluded marker cell.
func Excluded() Value { return Value{excluded: true} }

// IsNumber reports whether v is a literal.
func (v Value) IsNumber() bool { return v.literal }

// IsExcluded reports whether v is the excluded marker.
func (v Value) IsExcluded() bool { return v.excluded }

// IsExpression reports whether v is an expression.
func (v Value) IsExpression() bool { return !v.literal && !v.excluded && v.expr != "" }

func (v Value) set() bool { return v.literal || v.excluded || v.expr != "" }

// Float returns the literal value.
func (v Value) Float() float64 { return v.number }

// Expr returns the expression text. Literals are formatted as expressions.
func (v Value) Expr() string {
	if v.literal {
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	}
	return v.expr
}

func (v Value) String() string {
	if v.excluded {
		return ExcludedMarker
	}
	return v.Expr()
}

// UnmarshalYAML decodes numbers as literals, the bare X as the excluded
// marker and any other string as an expression.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: cell must be a number, an expression or %s", node.Line, ExcludedMarker)
	}
	switch node.Tag {
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("line %d: cell %q is not finite", node.Line, node.Value)
		}
		*v = Number(f)
		return nil
	}
	s := strings.TrimSpace(node.Value)
	switch s {
	case "":
		return fmt.Errorf("line %d: empty cell", node.Line)
	case ExcludedMarker:
		*v = Excluded()
	default:
		*v = Expression(s)
	}
	return nil
}

// MarshalYAML encodes v the way UnmarshalYAML reads it.
func (v Value) MarshalYAML() (any, error) {
	if v.literal {
		return v.number, nil
	}
	return v.String(), nil
}

// ConstVar is a named literal constant.
type ConstVar struct {
	Name  string
	Value float64
}

// ConstVars is an ordered "name: number" mapping.
type ConstVars []ConstVar

// UnmarshalYAML keeps declaration order.
func (c *ConstVars) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: Global Const Vars must be a mapping", node.Line)
	}
	out := make(ConstVars, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var f float64
		if err := node.Content[i+1].Decode(&f); err != nil {
			return fmt.Errorf("line %d: constant %q must be a number: %w", node.Content[i].Line, node.Content[i].Value, err)
		}
		out = append(out, ConstVar{Name: node.Content[i].Value, Value: f})
	}
	*c = out
	return nil
}

// MarshalYAML encodes the constants as an ordered mapping.
func (c ConstVars) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range c {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: v.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v.Value, 'g', -1, 64)})
	}
	return node, nil
}

// VarSpec declares a random or derived variable.
type VarSpec struct {
	Name       string           `yaml:"-"`
	Type       string           `yaml:"Type"`
	Params     map[string]Value `yaml:"Params,omitempty"`
	Expression string           `yaml:"Expression,omitempty"`
}

// VarList is an ordered "name: spec" mapping. A bare scalar spec is shorthand
// for an expr variable.
type VarList []VarSpec

// UnmarshalYAML keeps declaration order.
func (l *VarList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: variables must be a mapping of name to spec", node.Line)
	}
	out := make(VarList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		spec := VarSpec{Name: key.Value}
		if val.Kind == yaml.ScalarNode {
			spec.Type = resolve.TypeExpr
			spec.Expression = val.Value
		} else {
			// Node.Decode does not inherit the decoder's KnownFields.
			if err := checkSpecKeys(val); err != nil {
				return fmt.Errorf("variable %q: %w", key.Value, err)
			}
			if err := val.Decode(&spec); err != nil {
				return fmt.Errorf("variable %q: %w", key.Value, err)
			}
		}
		spec.Name = key.Value
		out = append(out, spec)
	}
	*l = out
	return nil
}

var specKeys = map[string]bool{"Type": true, "Params": true, "Expression": true}

func checkSpecKeys(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if k := node.Content[i]; !specKeys[k.Value] {
			return fmt.Errorf("line %d: unknown key %q (valid: Type, Params, Expression)", k.Line, k.Value)
		}
	}
	return nil
}

// MarshalYAML encodes the list as an ordered mapping.
func (l VarList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range l {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v.Name}, &val)
	}
	return node, nil
}

// ColumnPlayerVars is the stochastic column player block.
type ColumnPlayerVars struct {
	RandomVars VarList `yaml:"Random Vars,omitempty"`
	UpdateVars VarList `yaml:"Update Vars,omitempty"`
	ResultVars VarList `yaml:"Result Vars,omitempty"`
}

// CostRow sets one row action's costs.
type CostRow struct {
	RowAction string           `yaml:"Row Action"`
	Costs     map[string]Value `yaml:"Cost for Column Actions"`
	// ColumnCosts overrides the column player's payoffs. Unset cells are
	// the negated row costs.
	ColumnCosts map[string]Value `yaml:"Column Player Cost,omitempty"`
}

// BeliefRow sets one situation's beliefs.
type BeliefRow struct {
	Situation string           `yaml:"Situation Name"`
	Beliefs   map[string]Value `yaml:"Belief for Column Action"`
	Current   Value            `yaml:"Current Belief"`
}

// Refit statistics.
const (
	RefitMean = "mean"
	RefitStd  = "std"
	RefitLast = "last"
)

// RefitRule updates a literal constant between simulation rounds, either from
// the history of a resolved variable or by capped multiplicative growth.
type RefitRule struct {
	Constant  string   `yaml:"Constant"`
	From      string   `yaml:"From,omitempty"`
	Statistic string   `yaml:"Statistic,omitempty"`
	Factor    float64  `yaml:"Factor,omitempty"`
	Limit     *float64 `yaml:"Limit,omitempty"`
}

// Settings is an HNF settings document.
type Settings struct {
	Name              string            `yaml:"Name"`
	SituationNames    []string          `yaml:"Situation Names"`
	RowActionNames    []string          `yaml:"Row Action Names"`
	ColumnActionNames []string          `yaml:"Column Action Names"`
	GlobalConstVars   ConstVars         `yaml:"Global Const Vars,omitempty"`
	RandomVars        VarList           `yaml:"Random Vars,omitempty"`
	ColumnPlayer      *ColumnPlayerVars `yaml:"Stochastic Column Player,omitempty"`
	RowActionCost     []CostRow         `yaml:"Row Action Cost"`
	RowBelief         []BeliefRow       `yaml:"Row Belief"`
	Refit             []RefitRule       `yaml:"Refit,omitempty"`
}

// LoadSettings reads and validates a settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseSettings decodes and validates a settings document. Unknown keys are rejected.
func ParseSettings(data []byte) (*Settings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Settings
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidSettings)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal encodes the settings as YAML.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}

// Validate checks required keys, name uniqueness and that every row, column
// and situation reference is declared.
func (s *Settings) Validate() error {
	if s.Name == "" {
		return invalid("missing required key %q", "Name")
	}
	lists := []struct {
		key   string
		names []string
	}{
		{"Situation Names", s.SituationNames},
		{"Row Action Names", s.RowActionNames},
		{"Column Action Names", s.ColumnActionNames},
	}
	owner := make(map[string]string)
	for _, l := range lists {
		if len(l.names) == 0 {
			return invalid("missing required key %q", l.key)
		}
		for _, name := range l.names {
			if name == "" {
				return invalid("%s contains an empty name", l.key)
			}
			if prev, ok := owner[name]; ok {
				return invalid("%q appears in both %s and %s", name, prev, l.key)
			}
			owner[name] = l.key
		}
	}
	situations := toSet(s.SituationNames)
	rows := toSet(s.RowActionNames)
	columns := toSet(s.ColumnActionNames)

	if len(s.RowActionCost) == 0 {
		return invalid("missing required key %q", "Row Action Cost")
	}
	costRows := make(map[string]bool)
	for _, row := range s.RowActionCost {
		if !rows[row.RowAction] {
			return invalid("Row Action Cost: unknown row action %q", row.RowAction)
		}
		if costRows[row.RowAction] {
			return invalid("Row Action Cost: row action %q listed twice", row.RowAction)
		}
		costRows[row.RowAction] = true
		for _, col := range s.ColumnActionNames {
			if _, ok := row.Costs[col]; !ok {
				return invalid("Row Action Cost %q: missing cost for %q", row.RowAction, col)
			}
		}
		for _, cells := range []map[string]Value{row.Costs, row.ColumnCosts} {
			for col, v := range cells {
				if !columns[col] {
					return invalid("Row Action Cost %q: unknown column action %q", row.RowAction, col)
				}
				if !v.set() {
					return invalid("Row Action Cost %q: empty cell for %q", row.RowAction, col)
				}
				if v.IsExcluded() {
					return invalid("Row Action Cost %q: %s is only allowed in beliefs", row.RowAction, ExcludedMarker)
				}
			}
		}
	}

	if len(s.RowBelief) == 0 {
		return invalid("missing required key %q", "Row Belief")
	}
	seen := make(map[string]bool)
	for _, row := range s.RowBelief {
		if !situations[row.Situation] {
			return invalid("Row Belief: unknown situation %q", row.Situation)
		}
		if seen[row.Situation] {
			return invalid("Row Belief: situation %q listed twice", row.Situation)
		}
		seen[row.Situation] = true
		for _, col := range s.ColumnActionNames {
			if _, ok := row.Beliefs[col]; !ok {
				return invalid("Row Belief %q: missing belief for %q", row.Situation, col)
			}
		}
		for col, v := range row.Beliefs {
			if !columns[col] {
				return invalid("Row Belief %q: unknown column action %q", row.Situation, col)
			}
			if !v.set() {
				return invalid("Row Belief %q: empty cell for %q", row.Situation, col)
			}
		}
		if row.Current.IsExcluded() || (!row.Current.IsNumber() && !row.Current.IsExpression()) {
			return invalid("Row Belief %q: missing %q", row.Situation, "Current Belief")
		}
	}
	for _, act := range s.RowActionNames {
		if !costRows[act] {
			return invalid("Row Action Cost: row action %q has no row", act)
		}
	}
	for _, sit := range s.SituationNames {
		if !seen[sit] {
			return invalid("Row Belief: situation %q has no row", sit)
		}
	}

	for _, v := range s.allVars() {
		for name, p := range v.Params {
			if p.IsExcluded() || !p.set() {
				return invalid("variable %q: parameter %q must be a number or an expression", v.Name, name)
			}
		}
	}
	if _, err := s.Declarations(); err != nil {
		return err
	}

	constants := make(map[string]bool)
	for _, c := range s.GlobalConstVars {
		constants[c.Name] = true
	}
	declared := make(map[string]bool)
	for _, v := range s.allVars() {
		declared[v.Name] = true
	}
	for i, r := range s.Refit {
		if !constants[r.Constant] {
			return invalid("Refit[%d]: %q is not a Global Const Var", i, r.Constant)
		}
		switch {
		case r.From != "" && r.Factor != 0:
			return invalid("Refit[%d]: set either From or Factor, not both", i)
		case r.From != "":
			if !declared[r.From] && !constants[r.From] {
				return invalid("Refit[%d]: unknown variable %q", i, r.From)
			}
			switch r.Statistic {
			case "", RefitMean, RefitStd, RefitLast:
			default:
				return invalid("Refit[%d]: unknown statistic %q (valid: %s, %s, %s)", i, r.Statistic, RefitMean, RefitStd, RefitLast)
			}
		case r.Factor != 0:
			if r.Factor <= 0 {
				return invalid("Refit[%d]: factor must be positive, got %v", i, r.Factor)
			}
		default:
			return invalid("Refit[%d]: one of From or Factor is required", i)
		}
	}
	return nil
}

func (s *Settings) allVars() []VarSpec {
	vars := append([]VarSpec(nil), s.RandomVars...)
	if s.ColumnPlayer != nil {
		vars = append(vars, s.ColumnPlayer.RandomVars...)
		vars = append(vars, s.ColumnPlayer.UpdateVars...)
		vars = append(vars, s.ColumnPlayer.ResultVars...)
	}
	return vars
}

// Declarations converts the variable sections for the resolver.
func (s *Settings) Declarations() (resolve.Declarations, error) {
	var d resolve.Declarations
	for _, c := range s.GlobalConstVars {
		d.Constants = append(d.Constants, resolve.Constant{Name: c.Name, Value: c.Value})
	}
	d.Random = toVariables(s.RandomVars)
	if s.ColumnPlayer != nil {
		d.ColumnPlayer = resolve.ColumnPlayer{
			Random: toVariables(s.ColumnPlayer.RandomVars),
			Update: toVariables(s.ColumnPlayer.UpdateVars),
			Result: toVariables(s.ColumnPlayer.ResultVars),
		}
	}
	if err := d.Validate(); err != nil {
		return resolve.Declarations{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return d, nil
}

func toVariables(list VarList) []resolve.Variable {
	out := make([]resolve.Variable, 0, len(list))
	for _, spec := range list {
		v := resolve.Variable{Name: spec.Name, Type: spec.Type, Expr: spec.Expression}
		if len(spec.Params) > 0 {
			v.Params = make(map[string]string, len(spec.Params))
			for name, p := range spec.Params {
				v.Params[name] = p.Expr()
			}
		}
		out = append(out, v)
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
