package dataset

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

// Options controls how a dataset file is read.
type Options struct {
	// Delimiter for CSV. If 0, chosen from the file extension (',' or '\t' for .tsv).
	Delimiter rune
	// Sheet selects the XLSX sheet; empty means the first sheet.
	Sheet string
	// Table selects the SQLite table; empty means "trips".
	Table string
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	Number  NumberFormat
}

// LoadReport summarizes what Load kept and dropped.
type LoadReport struct {
	Name         string   `json:"name"`
	Rows         int      `json:"rows"`
	Loaded       int      `json:"loaded"`
	Rejected     int      `json:"rejected"`
	MissingDates int      `json:"missing_dates"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing required column")

var naValues = []string{"", "NA", "NaN", "nan", "null", "NULL"}

// Load reads a dataset file (CSV, TSV, XLSX or SQLite) into an immutable Store.
func Load(path string, opt Options) (*Store, *LoadReport, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		header, rows, err = readXLSX(path, opt.Sheet)
	case ".db", ".sqlite", ".sqlite3":
		header, rows, err = readSQLite(path, opt.Table)
	default:
		header, rows, err = readCSV(path, opt.Delimiter)
	}
	if err != nil {
		return nil, nil, err
	}
	return FromRows(filepath.Base(path), header, rows, opt)
}

func readCSV(path string, delim rune) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if delim == 0 {
		delim = ','
		if strings.HasSuffix(strings.ToLower(path), ".tsv") {
			delim = '\t'
		}
	}
	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(delim),
		dataframe.NaNValues(naValues),
	)
	if df.Err != nil {
		if header, ok := headerOnly(f, delim); ok {
			return header, nil, nil
		}
		return nil, nil, fmt.Errorf("read csv: %w", df.Err)
	}
	recs := df.Records()
	if len(recs) == 0 {
		return nil, nil, fmt.Errorf("read csv: no header in %s", filepath.Base(path))
	}
	return recs[0], recs[1:], nil
}

// headerOnly re-reads f and reports whether it holds a header and no rows.
// gota refuses such files while the other formats load them as empty.
func headerOnly(f *os.File, delim rune) ([]string, bool) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, false
	}
	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil || len(recs) != 1 {
		return nil, false
	}
	return recs[0], true
}

func readXLSX(path, sheet string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("xlsx %s has no sheets", filepath.Base(path))
	}
	if sheet == "" {
		sheet = sheets[0]
	} else {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s, sheet) {
				sheet, found = s, true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheet)
	}
	return rows[0], rows[1:], nil
}

func readSQLite(path, table string) ([]string, [][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if table == "" {
		table = "trips"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	q := fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(table, `"`, `""`))
	rs, err := db.Query(q)
	if err != nil {
		return nil, nil, fmt.Errorf("query table %s: %w", table, err)
	}
	defer rs.Close()
	header, err := rs.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}
	var rows [][]string
	for rs.Next() {
		cells := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan row %d: %w", len(rows)+1, err)
		}
		row := make([]string, len(header))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return header, rows, nil
}

type columnKind int

const (
	kindIgnore columnKind = iota
	kindDate
	kindDeparture
	kindArrival
	kindService
	kindRoute
	kindSeason
	kindCategory
	kindNumeric
	kindCause
	kindExtra
	kindLabel
)

type column struct {
	name  string
	kind  columnKind
	cause string
}

// FromRows types raw string rows against the header. Rows whose cause percentages fall
// outside [0,100] are rejected; unparseable dates become the missing sentinel.
func FromRows(name string, header []string, rows [][]string, opt Options) (*Store, *LoadReport, error) {
	header = cleanHeader(header)
	rep := &LoadReport{Name: name}
	cols := make([]column, len(header))
	schema := Schema{Columns: header, present: map[string]bool{}}
	for i, h := range header {
		schema.present[norm(h)] = true
		cols[i] = classify(h)
		switch cols[i].kind {
		case kindCause:
			schema.Causes = append(schema.Causes, cols[i].cause)
		case kindIgnore:
			cols[i].kind = inferKind(rows, i, opt.Number)
			if cols[i].kind == kindExtra {
				schema.Extra = append(schema.Extra, h)
			} else {
				schema.Labels = append(schema.Labels, h)
			}
		}
	}
	if !schema.Has(ColDeparture) {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColDeparture)
	}
	if !schema.Has(ColArrival) {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColArrival)
	}
	if !schema.Has(ColArrivalDelay) {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %q not found; arrival delay metrics unavailable", ColArrivalDelay))
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rep.Rows++
		if opt.MaxRows > 0 && rep.Loaded >= opt.MaxRows {
			continue
		}
		rec, ok, reason := buildRecord(cols, row, opt.Number)
		if !ok {
			rep.Rejected++
			if rep.Rejected <= 5 {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("row %d rejected: %s", rep.Rows, reason))
			}
			continue
		}
		if !rec.HasDate && schema.Has(ColDate) {
			rep.MissingDates++
		}
		records = append(records, rec)
		rep.Loaded++
	}
	if rep.Rejected > 5 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows rejected in total", rep.Rejected))
	}
	if opt.MaxRows > 0 && rep.Loaded < rep.Rows-rep.Rejected {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", rep.Loaded, rep.Rows))
	}
	if rep.MissingDates > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows have a missing or unparseable date", rep.MissingDates))
	}
	return NewStore(name, schema, records), rep, nil
}

func classify(h string) column {
	c := column{name: h}
	if id, ok := CauseID(h); ok {
		c.kind, c.cause = kindCause, id
		return c
	}
	if _, ok := numericFields[norm(h)]; ok {
		c.kind = kindNumeric
		return c
	}
	switch norm(h) {
	case norm(ColDate):
		c.kind = kindDate
	case norm(ColDeparture):
		c.kind = kindDeparture
	case norm(ColArrival):
		c.kind = kindArrival
	case norm(ColService):
		c.kind = kindService
	case norm(ColRoute):
		c.kind = kindRoute
	case norm(ColSeason):
		c.kind = kindSeason
	case norm(ColCategory):
		c.kind = kindCategory
	}
	return c
}

// inferKind decides whether an unrecognized column is numeric by predominant parse.
func inferKind(rows [][]string, idx int, nf NumberFormat) columnKind {
	var num, txt int
	for _, row := range rows {
		if idx >= len(row) || isMissing(row[idx]) {
			continue
		}
		if _, ok := parseNumeric(row[idx], nf); ok {
			num++
		} else {
			txt++
		}
	}
	if num > 0 && num >= txt {
		return kindExtra
	}
	return kindLabel
}

func buildRecord(cols []column, row []string, nf NumberFormat) (Record, bool, string) {
	var r Record
	for i, c := range cols {
		if i >= len(row) {
			break
		}
		raw := strings.TrimSpace(row[i])
		if isMissing(raw) {
			continue
		}
		switch c.kind {
		case kindDate:
			r.Date, r.HasDate = parseDate(raw)
		case kindDeparture:
			r.Departure = raw
		case kindArrival:
			r.Arrival = raw
		case kindService:
			r.Service = raw
		case kindRoute:
			r.RouteLabel = raw
		case kindSeason:
			if s, ok := ParseSeason(raw); ok {
				r.Season = s
			}
		case kindCategory:
			r.Category = raw
		case kindNumeric:
			if v, ok := parseNumeric(raw, nf); ok {
				setNumeric(&r, c.name, v)
			}
		case kindCause:
			v, ok := parseNumeric(raw, nf)
			if !ok {
				continue
			}
			if v < 0 || v > 100 {
				return Record{}, false, fmt.Sprintf("%s=%v outside [0,100]", c.name, v)
			}
			if r.Causes == nil {
				r.Causes = Causes{}
			}
			r.Causes[c.cause] = v
		case kindExtra:
			if v, ok := parseNumeric(raw, nf); ok {
				if r.Extra == nil {
					r.Extra = map[string]float64{}
				}
				r.Extra[c.name] = v
			}
		case kindLabel:
			if r.Labels == nil {
				r.Labels = map[string]string{}
			}
			r.Labels[c.name] = raw
		}
	}
	r.Route = Route{Departure: r.Departure, Arrival: r.Arrival}
	if r.Season == "" && r.HasDate {
		r.Season = SeasonOf(r.Date.Month())
	}
	return r, true, ""
}

func setNumeric(r *Record, col string, v float64) {
	switch norm(col) {
	case norm(ColArrivalDelay):
		r.ArrivalDelay = Some(v)
	case norm(ColDepartureDelay):
		r.DepartureDelay = Some(v)
	case norm(ColScheduled):
		r.Scheduled = Some(v)
	case norm(ColCancelled):
		r.Cancelled = Some(v)
	case norm(ColJourneyTime):
		r.JourneyTime = Some(v)
	case norm(ColDelayedOver15):
		r.DelayedOver15 = Some(v)
	case norm(ColDelayScore):
		r.DelayScore = Some(v)
	}
}
