// Package report renders engine output as console tables.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/strategy"
)

// Console writes tables to an io.Writer.
type Console struct {
	out io.Writer
}

// NewConsoleWriter writes to w.
func NewConsoleWriter(w io.Writer) *Console { return &Console{out: w} }

// Pairs lists the pair table.
func (c *Console) Pairs(table *pairs.Table) {
	t := tablewriter.NewWriter(c.out)
	t.Header("Pair", "Base", "Quote", "Base code", "Quote code", "Price symbol", "Inverted")
	for _, p := range table.Pairs() {
		b, _ := table.Instrument(p.Base)
		q, _ := table.Instrument(p.Quote)
		t.Append(p.Name, p.Base, p.Quote, b.MarketCode, q.MarketCode, p.PriceSymbol, fmt.Sprint(p.Invert))
	}
	t.Render()
}

// Signals prints the last n signals of a pair, newest last. n <= 0 prints all.
func (c *Console) Signals(pair string, signals []model.Signal, n int) {
	if n > 0 && len(signals) > n {
		signals = signals[len(signals)-n:]
	}
	fmt.Fprintf(c.out, "\n%s: %d signals\n", pair, len(signals))
	t := tablewriter.NewWriter(c.out)
	t.Header("Date", "Dir", "Conv", "Type", "Base idx", "Quote idx", "Spread", "Base net", "Quote net")
	for _, s := range signals {
		t.Append(
			s.Date.Format(model.DateLayout),
			string(s.Direction),
			fmt.Sprintf("%d/%d", s.Conviction, model.MaxConviction),
			string(s.Type),
			fmt.Sprint(s.BaseIndex),
			fmt.Sprint(s.QuoteIndex),
			fmt.Sprintf("%+d", s.Spread),
			fmt.Sprint(s.BaseNet),
			fmt.Sprint(s.QuoteNet),
		)
	}
	t.Render()
}

// Explain prints the score breakdown of a verdict.
func (c *Console) Explain(pair string, v strategy.Verdict, base, quote model.InstrumentSnapshot) {
	fmt.Fprintf(c.out, "\n%s latest: %s %s conviction %d/%d (spread %+d)\n",
		pair, v.Direction, v.Type, v.Conviction, model.MaxConviction, v.Spread)
	fmt.Fprintf(c.out, "  base  idx %d %s trend=%s wow=%+d\n", base.COTIndex, v.BaseZone, trendWord(base.TrendUp), base.WeekChange)
	fmt.Fprintf(c.out, "  quote idx %d %s trend=%s wow=%+d\n", quote.COTIndex, v.QuoteZone, trendWord(quote.TrendUp), quote.WeekChange)

	t := tablewriter.NewWriter(c.out)
	t.Header("Step", "Points", "Why")
	for _, st := range v.Steps {
		t.Append(st.Name, fmt.Sprintf("%+d", st.Points), st.Commentary)
	}
	t.Render()
}

// Trades prints matched signals.
func (c *Console) Trades(matched []model.MatchedSignal) {
	t := tablewriter.NewWriter(c.out)
	t.Header("Signal", "Dir", "Conv", "Type", "Entry", "Exit", "Entry px", "Exit px", "Pct", "Result")
	for _, m := range matched {
		t.Append(
			m.Date.Format(model.DateLayout),
			string(m.Direction),
			fmt.Sprint(m.Conviction),
			string(m.Type),
			m.EntryDate.Format(model.DateLayout),
			m.ExitDate.Format(model.DateLayout),
			fmt.Sprintf("%.5f", m.EntryPrice),
			fmt.Sprintf("%.5f", m.ExitPrice),
			fmt.Sprintf("%+.3f%%", m.PctChange),
			string(m.Result),
		)
	}
	t.Render()
}

// Summary prints the aggregate statistics of a run.
func (c *Console) Summary(res *model.RunResult) {
	s := res.Summary
	fmt.Fprintf(c.out, "\n%s backtest (run %s)\n", res.Pair, res.RunID)
	fmt.Fprintf(c.out, "  filter: conviction >= %d, exclude conflicts %v\n", s.MinConviction, s.ExcludeConflicts)
	fmt.Fprintf(c.out, "  signals %d, matched %d, dropped %d\n", len(res.Signals), len(res.Matched), res.Dropped)

	t := tablewriter.NewWriter(c.out)
	t.Header("Type", "Trades", "Wins", "Losses", "Flats", "Win rate")
	for _, typ := range sortedTypes(s.ByType) {
		ts := s.ByType[typ]
		t.Append(string(typ), fmt.Sprint(ts.Total), fmt.Sprint(ts.Wins), fmt.Sprint(ts.Losses), fmt.Sprint(ts.Flats),
			winRate(ts.Wins, ts.Wins+ts.Losses))
	}
	t.Append("ALL", fmt.Sprint(s.Total), fmt.Sprint(s.Wins), fmt.Sprint(s.Losses), fmt.Sprint(s.Flats),
		winRate(s.Wins, s.Decided))
	t.Render()

	var equity float64
	if n := len(s.Equity); n > 0 {
		equity = s.Equity[n-1].CumulativePct
	}
	fmt.Fprintf(c.out, "  avg win %.3f%% | avg loss %.3f%% | equity %+.3f%%\n", s.AvgWinPct, s.AvgLossPct, equity)
}

// Runs prints a one-line-per-pair overview.
func (c *Console) Runs(results []*model.RunResult) {
	t := tablewriter.NewWriter(c.out)
	t.Header("Pair", "Latest", "Conv", "Type", "Trades", "Win rate", "Equity")
	for _, r := range results {
		latest, conv, typ := "-", "-", "-"
		if n := len(r.Signals); n > 0 {
			s := r.Signals[n-1]
			latest = s.Date.Format(model.DateLayout) + " " + string(s.Direction)
			conv = fmt.Sprint(s.Conviction)
			typ = string(s.Type)
		}
		var equity float64
		if n := len(r.Summary.Equity); n > 0 {
			equity = r.Summary.Equity[n-1].CumulativePct
		}
		t.Append(r.Pair, latest, conv, typ, fmt.Sprint(r.Summary.Total),
			winRate(r.Summary.Wins, r.Summary.Decided), fmt.Sprintf("%+.3f%%", equity))
	}
	t.Render()
}

func winRate(wins, decided int) string {
	if decided == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(wins)/float64(decided)*100)
}

func trendWord(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func sortedTypes(m map[model.SignalType]model.TypeStats) []model.SignalType {
	out := make([]model.SignalType, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
