package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"COTSentinel/internal/model"
	"COTSentinel/internal/strategy"
)

// FormatLatestSignals formats the most recent signal of every pair into a Telegram message.
// Pairs are listed by descending conviction; failed pairs are listed last.
func FormatLatestSignals(runAt time.Time, results []*model.RunResult, failures map[string]error) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>COTSentinel weekly</b> | %s\n\n", runAt.Format(model.DateLayout)))

	ranked := make([]*model.RunResult, 0, len(results))
	for _, r := range results {
		if len(r.Signals) > 0 {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return latest(ranked[i]).Conviction > latest(ranked[j]).Conviction
	})

	if len(ranked) == 0 {
		b.WriteString("No signals this week.\n")
	}
	for _, r := range ranked {
		s := latest(r)
		b.WriteString(fmt.Sprintf("%s <b>%s</b> %s %s %s\n",
			directionIcon(s.Direction), r.Pair, s.Direction, s.Type, convictionBar(s.Conviction)))
		b.WriteString(fmt.Sprintf("   idx %d / %d (spread %+d) | week %s\n",
			s.BaseIndex, s.QuoteIndex, s.Spread, s.Date.Format(model.DateLayout)))
		if sum := r.Summary; sum.Decided > 0 {
			b.WriteString(fmt.Sprintf("   history: %d trades, win rate %.0f%%\n", sum.Total, sum.WinRate*100))
		}
	}

	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n⚠️ <b>Unavailable:</b>\n")
		for _, name := range names {
			b.WriteString(fmt.Sprintf("  %s: %s\n", name, html.EscapeString(failures[name].Error())))
		}
	}
	return b.String()
}

// FormatBacktest formats one pair's backtest summary.
func FormatBacktest(res *model.RunResult) string {
	s := res.Summary
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧪 <b>%s backtest</b>\n\n", res.Pair))
	conflicts := "included"
	if s.ExcludeConflicts {
		conflicts = "excluded"
	}
	b.WriteString(fmt.Sprintf("Filter: conviction ≥ %d, conflicts %s\n", s.MinConviction, conflicts))
	b.WriteString(fmt.Sprintf("Signals: %d | matched: %d | no price: %d\n\n", len(res.Signals), len(res.Matched), res.Dropped))

	if s.Decided == 0 {
		b.WriteString(fmt.Sprintf("Trades: %d, none decided\n", s.Total))
	} else {
		b.WriteString(fmt.Sprintf("Trades: %d (W %d / L %d / F %d)\n", s.Total, s.Wins, s.Losses, s.Flats))
		b.WriteString(fmt.Sprintf("Win rate: %.1f%%\n", s.WinRate*100))
	}
	b.WriteString(fmt.Sprintf("Avg win: %.3f%% | avg loss: %.3f%%\n", s.AvgWinPct, s.AvgLossPct))
	if n := len(s.Equity); n > 0 {
		b.WriteString(fmt.Sprintf("Equity: %+.3f%%\n", s.Equity[n-1].CumulativePct))
	}

	for _, typ := range []model.SignalType{model.Contrarian, model.Trend, model.Conflict} {
		ts, ok := s.ByType[typ]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("  %s: %d (W %d / L %d)\n", typ, ts.Total, ts.Wins, ts.Losses))
	}
	return b.String()
}

// FormatExplain formats the score breakdown behind the latest signal.
func FormatExplain(pair string, v strategy.Verdict, base, quote model.InstrumentSnapshot) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>%s</b> %s %s %s\n\n", pair, v.Direction, v.Type, convictionBar(v.Conviction)))
	b.WriteString(fmt.Sprintf("Base: idx %d %s, trend %s, wow %+d\n", base.COTIndex, v.BaseZone, trendArrow(base.TrendUp), base.WeekChange))
	b.WriteString(fmt.Sprintf("Quote: idx %d %s, trend %s, wow %+d\n\n", quote.COTIndex, v.QuoteZone, trendArrow(quote.TrendUp), quote.WeekChange))
	for _, st := range v.Steps {
		b.WriteString(fmt.Sprintf("  %s %+d (%s)\n", st.Name, st.Points, html.EscapeString(st.Commentary)))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Commands:\n" +
		"• /signals: latest signal per pair\n" +
		"• /backtest PAIR: backtest summary, e.g. /backtest EURUSD\n" +
		"• /explain PAIR: score breakdown of the latest week\n" +
		"• /refresh: fetch data and rerun now"
}

// FormatError formats a failure notice.
func FormatError(what string, err error) string {
	return fmt.Sprintf("❌ %s: %s", what, html.EscapeString(err.Error()))
}

func latest(r *model.RunResult) model.Signal {
	return r.Signals[len(r.Signals)-1]
}

func convictionBar(c int) string {
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("■", c), strings.Repeat("□", model.MaxConviction-c), c, model.MaxConviction)
}

func directionIcon(d model.Direction) string {
	if d == model.Buy {
		return "🟢"
	}
	return "🔴"
}

func trendArrow(up bool) string {
	if up {
		return "↑"
	}
	return "↓"
}
