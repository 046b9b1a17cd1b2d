package collector

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
)

// DefaultCFTCURLs are the yearly financial futures archives, tried in order.
var DefaultCFTCURLs = []string{
	"https://www.cftc.gov/files/dea/history/fut_fin_xls_{year}.zip",
	"https://www.cftc.gov/files/dea/history/fin_fut_xls_{year}.zip",
}

// DefaultMaxWeeks bounds the history kept per instrument.
const DefaultMaxWeeks = 104

// CSV columns of the CFTC historical report.
const (
	colMarketCode   = "CFTC_Contract_MarketCode"
	colMarketName   = "Market_and_Exchange_Names"
	colReportDate   = "Report_Date_as_YYYY-MM-DD"
	colAsOfDate     = "As_of_Date_In_Form_YYMMDD"
	colNonCommLong  = "NonComm_Positions_Long_All"
	colNonCommShort = "NonComm_Positions_Short_All"
	colCommLong     = "Comm_Positions_Long_All"
	colCommShort    = "Comm_Positions_Short_All"
	colNonReptLong  = "NonRept_Positions_Long_All"
	colNonReptShort = "NonRept_Positions_Short_All"
)

// CFTCFetcher downloads the yearly CFTC zip archives and extracts currency positioning.
type CFTCFetcher struct {
	URLTemplates []string
	Years        int
	MaxWeeks     int
	Client       *http.Client
	Now          func() time.Time
}

// NewCFTCFetcher creates a fetcher for the current year and years-1 previous ones.
func NewCFTCFetcher(templates []string, years, maxWeeks int, timeout time.Duration, proxyURL string) *CFTCFetcher {
	if len(templates) == 0 {
		templates = DefaultCFTCURLs
	}
	if years <= 0 {
		years = 2
	}
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CFTCFetcher{
		URLTemplates: templates,
		Years:        years,
		MaxWeeks:     maxWeeks,
		Client:       newHTTPClient(proxyURL, timeout),
		Now:          time.Now,
	}
}

func (f *CFTCFetcher) Name() string { return "cftc" }

// reportRow is one parsed line of the report.
type reportRow struct {
	marketCode string
	marketName string
	week       model.WeeklyPosition
}

func (f *CFTCFetcher) FetchPositions(ctx context.Context, instruments []pairs.Instrument) (model.PositionFeed, error) {
	year := f.Now().Year()
	var rows []reportRow
	var lastErr error
	for y := year; y > year-f.Years; y-- {
		data, err := f.fetchYear(ctx, y)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("year", y).Msg("cftc archive unavailable")
			lastErr = err
			continue
		}
		parsed, err := parseArchive(data)
		if err != nil {
			log.Warn().Err(err).Int("year", y).Msg("cftc archive unreadable")
			lastErr = err
			continue
		}
		log.Debug().Int("year", y).Int("rows", len(parsed)).Msg("cftc archive parsed")
		rows = append(rows, parsed...)
	}
	if len(rows) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no rows")
		}
		return nil, fmt.Errorf("cftc: no report data: %w", lastErr)
	}
	return selectInstruments(rows, instruments, f.MaxWeeks), nil
}

// fetchYear tries each URL template in order and returns the first archive body.
func (f *CFTCFetcher) fetchYear(ctx context.Context, year int) ([]byte, error) {
	var errs []error
	for _, tmpl := range f.URLTemplates {
		u := strings.ReplaceAll(tmpl, "{year}", strconv.Itoa(year))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.Client.Do(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: read body: %w", u, err))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			errs = append(errs, fmt.Errorf("%s: status %d", u, resp.StatusCode))
			continue
		}
		return body, nil
	}
	return nil, errors.Join(errs...)
}

// parseArchive reads the first .txt or .csv member of a report archive.
func parseArchive(data []byte) ([]reportRow, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, zf := range zr.File {
		name := strings.ToLower(zf.Name)
		if !strings.HasSuffix(name, ".txt") && !strings.HasSuffix(name, ".csv") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", zf.Name, err)
		}
		defer rc.Close()
		return parseReport(rc)
	}
	return nil, errors.New("archive has no .txt or .csv member")
}

// parseReport parses a CSV report with a header row. Rows without a usable date are skipped.
func parseReport(r io.Reader) ([]reportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []reportRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		date, ok := reportDate(get(rec, colReportDate), get(rec, colAsOfDate))
		if !ok {
			continue
		}
		w := model.WeeklyPosition{
			Date:         date,
			NonCommLong:  lenientInt(get(rec, colNonCommLong)),
			NonCommShort: lenientInt(get(rec, colNonCommShort)),
			CommLong:     lenientInt(get(rec, colCommLong)),
			CommShort:    lenientInt(get(rec, colCommShort)),
			NonReptLong:  lenientInt(get(rec, colNonReptLong)),
			NonReptShort: lenientInt(get(rec, colNonReptShort)),
		}
		w.NetNonComm = w.NonCommLong - w.NonCommShort
		w.NetComm = w.CommLong - w.CommShort
		rows = append(rows, reportRow{
			marketCode: get(rec, colMarketCode),
			marketName: get(rec, colMarketName),
			week:       w,
		})
	}
	return rows, nil
}

// reportDate prefers the ISO report date and falls back to the YYMMDD form.
func reportDate(iso, yymmdd string) (time.Time, bool) {
	if len(iso) >= 10 {
		if t, err := model.ParseDate(iso[:10]); err == nil {
			return t, true
		}
	}
	if len(yymmdd) == 6 {
		if t, err := time.ParseInLocation("060102", yymmdd, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// lenientInt parses integers that may be formatted as floats. Empty or invalid input is 0.
func lenientInt(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// selectInstruments groups rows per instrument by market code, falling back to a
// market name match when no row carries the code.
func selectInstruments(rows []reportRow, instruments []pairs.Instrument, maxWeeks int) model.PositionFeed {
	feed := make(model.PositionFeed, len(instruments))
	for _, in := range instruments {
		var matched []reportRow
		for _, r := range rows {
			if r.marketCode == in.MarketCode {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 && in.MarketName != "" {
			needle := strings.ToUpper(in.MarketName)
			for _, r := range rows {
				if strings.Contains(strings.ToUpper(r.marketName), needle) {
					matched = append(matched, r)
				}
			}
		}
		if len(matched) == 0 {
			log.Warn().Str("instrument", in.Code).Str("market_code", in.MarketCode).Msg("instrument not found in cftc report")
			continue
		}

		// newest first, one row per report date
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].week.Date.After(matched[j].week.Date) })
		weeks := make([]model.WeeklyPosition, 0, len(matched))
		for _, r := range matched {
			if n := len(weeks); n > 0 && weeks[n-1].Date.Equal(r.week.Date) {
				continue
			}
			weeks = append(weeks, r.week)
		}
		if maxWeeks > 0 && len(weeks) > maxWeeks {
			weeks = weeks[:maxWeeks]
		}
		feed[in.Code] = model.PositionRecord{
			Code:   in.MarketCode,
			Market: matched[0].marketName,
			Weeks:  weeks,
		}
	}
	return feed
}
