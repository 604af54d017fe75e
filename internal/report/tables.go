package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"hypergame/internal/hnf"
	"hypergame/internal/resolve"
	"hypergame/internal/simulate"
)

// Renderer draws tables with a fixed set of styles.
type Renderer struct {
	styles Styles
}

// New returns a renderer using styles.
func New(styles Styles) *Renderer {
	return &Renderer{styles: styles}
}

// num formats a value at the engine's five-decimal precision.
func num(v float64) string {
	v = resolve.RoundTo(v, 5)
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r *Renderer) table(headers []string, rows [][]string, highlight func(row, col int) bool) *table.Table {
	s := r.styles
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.Header
			case col == 0:
				return s.Label
			case highlight != nil && highlight(row, col):
				return s.Highlight
			case row < len(rows) && col < len(rows[row]) && rows[row][col] == "":
				return s.Muted
			default:
				return s.Cell
			}
		})
}

// HNFTable renders the hypergame normal form: summary belief, each
// situation's current and column beliefs, and each row action's costs with
// its expected value. Column player costs that differ from the negated row
// cost are shown after a slash.
func (r *Renderer) HNFTable(inst *hnf.Instance) (string, error) {
	ev, err := inst.ExpectedValue()
	if err != nil {
		return "", err
	}
	columns := inst.ColumnActions()
	headers := append([]string{inst.Name(), "Current Belief"}, columns...)
	headers = append(headers, "EV")

	var rows [][]string
	summary := inst.SummaryBelief()
	row := []string{"Summary Belief", ""}
	for _, v := range summary.Values {
		row = append(row, num(v))
	}
	rows = append(rows, append(row, ""))

	current := inst.CurrentBelief()
	for _, sit := range inst.Situations() {
		row := []string{sit, num(current.Get(sit))}
		for _, col := range columns {
			b, err := inst.SituationalBelief(sit, col)
			if err != nil {
				return "", err
			}
			if p, ok := b.Value(); ok {
				row = append(row, num(p))
			} else {
				row = append(row, b.String())
			}
		}
		rows = append(rows, append(row, ""))
	}

	for _, action := range inst.RowActions() {
		row := []string{action, ""}
		for _, col := range columns {
			cell, err := costCell(inst, action, col)
			if err != nil {
				return "", err
			}
			row = append(row, cell)
		}
		rows = append(rows, append(row, num(ev.Get(action))))
	}

	return r.table(headers, rows, nil).Render(), nil
}

func costCell(inst *hnf.Instance, row, col string) (string, error) {
	rc, err := inst.Cost(row, col, hnf.RowActor)
	if err != nil {
		return "", err
	}
	cc, err := inst.Cost(row, col, hnf.ColumnActor)
	if err != nil {
		return "", err
	}
	if cc == -rc {
		return num(rc), nil
	}
	return num(rc) + " / " + num(cc), nil
}

// ActionTable renders per row action the expected value, worst case,
// modeling-opponent value and hypergame expected utility at uncertainty u.
func (r *Renderer) ActionTable(inst *hnf.Instance, u float64) (string, error) {
	ev, err := inst.ExpectedValue()
	if err != nil {
		return "", err
	}
	mo, err := inst.ModelingOpponentValues()
	if err != nil {
		return "", err
	}
	heu, err := inst.ActionHEU(ev, u)
	if err != nil {
		return "", err
	}
	best := heu.Argmax()

	var rows [][]string
	for _, action := range inst.RowActions() {
		worst, err := inst.WorstCase(action)
		if err != nil {
			return "", err
		}
		rows = append(rows, []string{action, num(ev.Get(action)), num(worst), num(mo.Get(action)), num(heu.Get(action))})
	}
	highlight := func(row, col int) bool {
		return col == 4 && rows[row][0] == best
	}
	headers := []string{"Row Action", "EV", "Worst Case", "MO Value", fmt.Sprintf("HEU (u=%s)", num(u))}
	return r.table(headers, rows, highlight).Render(), nil
}

// ResultsTable renders each hyperstrategy's vector, EU, worst case and
// HEU. The best HEU is highlighted.
func (r *Renderer) ResultsTable(res *hnf.Results) string {
	actions := res.ExpectedValue.Names
	headers := append([]string{"Strategy"}, actions...)
	headers = append(headers, "EU", "G", "HEU", "Subgame")

	best := res.Best().Strategy
	var rows [][]string
	for _, s := range hnf.Strategies {
		result, ok := res.ByStrategy[s]
		if !ok {
			continue
		}
		row := []string{string(s)}
		for _, a := range actions {
			row = append(row, num(result.Vector.Get(a)))
		}
		rows = append(rows, append(row, num(result.ExpectedUtility), num(result.WorstCase), num(result.HEU), result.Situation))
	}
	heuCol := len(actions) + 3
	highlight := func(row, col int) bool {
		return col == heuCol && rows[row][0] == string(best)
	}
	title := r.styles.Title.Render(fmt.Sprintf("%s at uncertainty %s", res.Name, num(res.Uncertainty)))
	return title + "\n" + r.table(headers, rows, highlight).Render()
}

// SweepTable renders HEU per hyperstrategy for every uncertainty of a sweep.
func (r *Renderer) SweepTable(sweep []*hnf.Results) string {
	headers := []string{"Uncertainty"}
	for _, s := range hnf.Strategies {
		headers = append(headers, string(s))
	}
	headers = append(headers, "Best")

	var rows [][]string
	for _, res := range sweep {
		row := []string{num(res.Uncertainty)}
		for _, s := range hnf.Strategies {
			row = append(row, num(res.Get(s).HEU))
		}
		rows = append(rows, append(row, string(res.Best().Strategy)))
	}
	highlight := func(row, col int) bool {
		if col == 0 || col > len(hnf.Strategies) {
			return false
		}
		return string(hnf.Strategies[col-1]) == rows[row][len(rows[row])-1]
	}
	return r.table(headers, rows, highlight).Render()
}

// SimulationTable renders the per-hyperstrategy aggregates of a run.
func (r *Renderer) SimulationTable(sum *simulate.Summary) string {
	headers := []string{"Strategy", "Mean HEU", "Std HEU", "Mean EU", "Std EU", "Best"}
	recommended := sum.Recommended()
	var rows [][]string
	for _, st := range sum.Stats {
		rows = append(rows, []string{
			string(st.Strategy),
			num(st.MeanHEU), num(st.StdHEU),
			num(st.MeanEU), num(st.StdEU),
			fmt.Sprintf("%d/%d", st.Best, len(sum.Rounds)),
		})
	}
	highlight := func(row, col int) bool {
		return col == 5 && rows[row][0] == string(recommended)
	}

	var b strings.Builder
	b.WriteString(r.styles.Title.Render(fmt.Sprintf("%s: %d rounds", sum.Name, len(sum.Rounds))))
	b.WriteString("\n")
	b.WriteString(r.table(headers, rows, highlight).Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "run %s, recommended %s", sum.ID, recommended)
	return b.String()
}
