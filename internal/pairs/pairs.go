// Package pairs holds the static FX pair and COT instrument lookup tables.
// Tables are built once at startup and never mutated afterwards.
package pairs

import (
	"fmt"
	"strings"
)

// Instrument is one currency futures contract in the COT report.
type Instrument struct {
	Code       string // currency code, e.g. EUR
	MarketCode string // CFTC_Contract_MarketCode
	MarketName string // substring of Market_and_Exchange_Names used as fallback
}

// Pair is a tradable currency pair built from two instruments.
type Pair struct {
	Name        string // EURUSD
	Base        string // numerator currency
	Quote       string // denominator currency
	PriceSymbol string // symbol understood by the price feed
	Invert      bool   // the price feed quotes base-per-quote and must be inverted
}

var defaultInstruments = []Instrument{
	{Code: "EUR", MarketCode: "099741", MarketName: "EURO FX"},
	{Code: "GBP", MarketCode: "096742", MarketName: "BRITISH POUND"},
	{Code: "JPY", MarketCode: "097741", MarketName: "JAPANESE YEN"},
	{Code: "CHF", MarketCode: "092741", MarketName: "SWISS FRANC"},
	{Code: "CAD", MarketCode: "090741", MarketName: "CANADIAN DOLLAR"},
	{Code: "AUD", MarketCode: "232741", MarketName: "AUSTRALIAN DOLLAR"},
	{Code: "NZD", MarketCode: "112741", MarketName: "NEW ZEALAND DOLLAR"},
	{Code: "USD", MarketCode: "098662", MarketName: "USD INDEX"},
}

var defaultPairs = []string{
	"EURUSD", "GBPUSD", "AUDUSD", "NZDUSD",
	"USDJPY", "USDCHF", "USDCAD",
	"EURJPY", "EURGBP", "EURCHF", "GBPJPY", "AUDJPY",
}

// Table is an immutable lookup of pairs and instruments.
type Table struct {
	order       []string
	pairs       map[string]Pair
	instruments map[string]Instrument
}

// Default returns the built-in table.
func Default() *Table {
	t := &Table{
		pairs:       make(map[string]Pair, len(defaultPairs)),
		instruments: make(map[string]Instrument, len(defaultInstruments)),
	}
	for _, in := range defaultInstruments {
		t.instruments[in.Code] = in
	}
	for _, name := range defaultPairs {
		t.order = append(t.order, name)
		t.pairs[name] = Pair{
			Name:        name,
			Base:        name[:3],
			Quote:       name[3:],
			PriceSymbol: name + "=X",
		}
	}
	return t
}

// Normalize turns "eur/usd", "EUR_USD" or "eurusd" into "EURUSD".
func Normalize(name string) string {
	r := strings.NewReplacer("/", "", "_", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(name))
}

// Pair looks up a pair by name.
func (t *Table) Pair(name string) (Pair, bool) {
	p, ok := t.pairs[Normalize(name)]
	return p, ok
}

// Pairs returns all pairs in table order.
func (t *Table) Pairs() []Pair {
	out := make([]Pair, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.pairs[name])
	}
	return out
}

// Instrument looks up an instrument by currency code.
func (t *Table) Instrument(code string) (Instrument, bool) {
	in, ok := t.instruments[strings.ToUpper(code)]
	return in, ok
}

// Select returns a new table restricted to names, in the given order. Names listed in
// inverted get their price feed inverted.
func (t *Table) Select(names, inverted []string) (*Table, error) {
	inv := make(map[string]bool, len(inverted))
	for _, n := range inverted {
		inv[Normalize(n)] = true
	}
	out := &Table{
		pairs:       make(map[string]Pair, len(names)),
		instruments: t.instruments,
	}
	for _, n := range names {
		p, ok := t.Pair(n)
		if !ok {
			return nil, fmt.Errorf("unknown pair %q", n)
		}
		if _, dup := out.pairs[p.Name]; dup {
			continue
		}
		p.Invert = inv[p.Name]
		out.order = append(out.order, p.Name)
		out.pairs[p.Name] = p
	}
	for name := range inv {
		if _, ok := out.pairs[name]; !ok {
			return nil, fmt.Errorf("inverted pair %q is not selected", name)
		}
	}
	return out, nil
}
