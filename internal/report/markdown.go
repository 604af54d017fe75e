package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"hypergame/internal/hnf"
)

// Markdown renders an instance and its results as a markdown document.
func Markdown(inst *hnf.Instance, res *hnf.Results) (string, error) {
	ev, err := inst.ExpectedValue()
	if err != nil {
		return "", err
	}
	columns := inst.ColumnActions()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", inst.Name())

	b.WriteString("## Beliefs\n\n")
	writeRow(&b, append([]string{"Situation", "Current"}, columns...))
	writeRule(&b, len(columns)+2)
	summary := inst.SummaryBelief()
	row := []string{"*Summary*", ""}
	for _, v := range summary.Values {
		row = append(row, num(v))
	}
	writeRow(&b, row)
	current := inst.CurrentBelief()
	for _, sit := range inst.Situations() {
		row := []string{sit, num(current.Get(sit))}
		for _, col := range columns {
			belief, err := inst.SituationalBelief(sit, col)
			if err != nil {
				return "", err
			}
			if p, ok := belief.Value(); ok {
				row = append(row, num(p))
			} else {
				row = append(row, belief.String())
			}
		}
		writeRow(&b, row)
	}

	b.WriteString("\n## Costs\n\n")
	writeRow(&b, append(append([]string{"Row Action"}, columns...), "EV"))
	writeRule(&b, len(columns)+2)
	for _, action := range inst.RowActions() {
		row := []string{action}
		for _, col := range columns {
			cell, err := costCell(inst, action, col)
			if err != nil {
				return "", err
			}
			row = append(row, cell)
		}
		writeRow(&b, append(row, num(ev.Get(action))))
	}

	fmt.Fprintf(&b, "\n## Hyperstrategies (uncertainty %s)\n\n", num(res.Uncertainty))
	actions := res.ExpectedValue.Names
	writeRow(&b, append(append([]string{"Strategy"}, actions...), "EU", "G", "HEU", "Subgame"))
	writeRule(&b, len(actions)+5)
	for _, s := range hnf.Strategies {
		r, ok := res.ByStrategy[s]
		if !ok {
			continue
		}
		row := []string{string(s)}
		for _, a := range actions {
			row = append(row, num(r.Vector.Get(a)))
		}
		writeRow(&b, append(row, num(r.ExpectedUtility), num(r.WorstCase), num(r.HEU), r.Situation))
	}

	best := res.Best()
	fmt.Fprintf(&b, "\n**Recommendation:** %s (HEU %s)", best.Strategy, num(best.HEU))
	if top := best.Vector.Argmax(); top != "" {
		fmt.Fprintf(&b, ", mostly `%s`", top)
	}
	b.WriteString("\n")
	return b.String(), nil
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

func writeRule(b *strings.Builder, n int) {
	b.WriteString("|")
	b.WriteString(strings.Repeat(" --- |", n))
	b.WriteString("\n")
}

// RenderMarkdown renders markdown for the terminal, wrapped at width.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
