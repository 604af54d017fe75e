package game

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

// WriteNFG encodes g in the Gambit strategic-form payoff format (version 1,
// real payoffs). Outcomes are listed with the row strategy varying fastest.
func (g *Game) WriteNFG(w io.Writer) error {
	if err := g.Validate(); err != nil {
		return err
	}
	rows, cols := g.Shape()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NFG 1 R %s { %s %s }\n",
		quote(g.Title), quote(g.Players[Row].Label), quote(g.Players[Column].Label))
	fmt.Fprintf(bw, "{ %s\n%s\n}\n", strategyList(g.Players[Row].Strategies), strategyList(g.Players[Column].Strategies))
	fmt.Fprintln(bw, `""`)
	fmt.Fprintln(bw)

	first := true
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			if !first {
				bw.WriteByte(' ')
			}
			first = false
			fmt.Fprintf(bw, "%s %s",
				strconv.FormatFloat(g.Payoffs[r][c][Row], 'g', -1, 64),
				strconv.FormatFloat(g.Payoffs[r][c][Column], 'g', -1, 64))
		}
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func strategyList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return "{ " + strings.Join(quoted, " ") + " }"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ParseProfiles reads the "NE,..." lines printed by gambit command-line
// tools. Values may be decimals or rationals such as 1/3. Lines that do not
// start with "NE," are ignored.
func ParseProfiles(r io.Reader, g *Game) ([]Profile, error) {
	rows, cols := g.Shape()
	var profiles []Profile

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "NE,") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "NE,"), ",")
		if len(fields) != rows+cols {
			return nil, fmt.Errorf("profile has %d values, want %d: %q", len(fields), rows+cols, line)
		}
		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := parseNumber(f)
			if err != nil {
				return nil, fmt.Errorf("profile value %d: %w", i, err)
			}
			values[i] = v
		}
		profiles = append(profiles, g.NewProfile(values[:rows], values[rows:]))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read solver output: %w", err)
	}
	return profiles, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		rat, ok := new(big.Rat).SetString(s)
		if !ok {
			return 0, fmt.Errorf("invalid rational %q", s)
		}
		f, _ := rat.Float64()
		return f, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}
