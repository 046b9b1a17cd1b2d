package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"COTSentinel/internal/model"
	"COTSentinel/internal/strategy"
)

type healthResponse struct {
	Status      string     `json:"status"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Pairs       int        `json:"pairs"`
	Failed      []string   `json:"failed,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := s.engine.Latest(); snap != nil {
		at := snap.RunAt
		resp.LastRefresh = &at
		resp.Pairs = len(snap.Results)
		for name := range snap.Failures {
			resp.Failed = append(resp.Failed, name)
		}
		sort.Strings(resp.Failed)
	} else {
		resp.Status = "starting"
	}
	writeJSON(w, http.StatusOK, resp)
}

type pairResponse struct {
	Name        string `json:"name"`
	Base        string `json:"base"`
	Quote       string `json:"quote"`
	BaseCode    string `json:"base_market_code"`
	QuoteCode   string `json:"quote_market_code"`
	PriceSymbol string `json:"price_symbol"`
	Invert      bool   `json:"invert"`
}

func (s *Server) listPairs(w http.ResponseWriter, r *http.Request) {
	ps := s.table.Pairs()
	out := make([]pairResponse, 0, len(ps))
	for _, p := range ps {
		b, _ := s.table.Instrument(p.Base)
		q, _ := s.table.Instrument(p.Quote)
		out = append(out, pairResponse{
			Name: p.Name, Base: p.Base, Quote: p.Quote,
			BaseCode: b.MarketCode, QuoteCode: q.MarketCode,
			PriceSymbol: p.PriceSymbol, Invert: p.Invert,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type signalsResponse struct {
	Pair    string         `json:"pair"`
	RunID   string         `json:"run_id"`
	Count   int            `json:"count"`
	Signals []model.Signal `json:"signals"`
}

func (s *Server) signals(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	res, err := s.engine.Backtest(r.Context(), mux.Vars(r)["pair"], s.filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	sigs := res.Signals
	if limit > 0 && len(sigs) > limit {
		sigs = sigs[len(sigs)-limit:]
	}
	writeJSON(w, http.StatusOK, signalsResponse{Pair: res.Pair, RunID: res.RunID, Count: len(sigs), Signals: sigs})
}

func (s *Server) backtest(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, s.filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Backtest(r.Context(), mux.Vars(r)["pair"], f)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type explainResponse struct {
	Pair    string                   `json:"pair"`
	Verdict strategy.Verdict         `json:"verdict"`
	Base    model.InstrumentSnapshot `json:"base"`
	Quote   model.InstrumentSnapshot `json:"quote"`
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Pair(mux.Vars(r)["pair"])
	if err != nil {
		writeEngineError(w, err)
		return
	}
	v, bs, qs, err := s.engine.Explain(r.Context(), p.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Pair: p.Name, Verdict: v, Base: bs, Quote: qs})
}
