package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// CSVProvider reads "<dir>/<ticker>.csv" files with a date,close header.
// Extra columns are ignored; a "Close" or "Adj Close" column is accepted.
type CSVProvider struct {
	fsys fs.FS
}

// NewCSVProvider creates a provider reading from dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{fsys: os.DirFS(dir)}
}

// NewCSVProviderFS creates a provider reading from fsys.
func NewCSVProviderFS(fsys fs.FS) *CSVProvider {
	return &CSVProvider{fsys: fsys}
}

// Fetch loads the ticker file and returns the rows within [start, end].
func (p *CSVProvider) Fetch(_ context.Context, ticker string, start, end time.Time) (*domain.PriceSeries, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	f, err := p.fsys.Open(fileName(ticker))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ticker, err)
	}

	full, err := seriesFromPoints(ticker, points)
	if err != nil {
		return nil, err
	}
	return seriesFromPoints(ticker, full.Between(start, end).Points())
}

// fileName maps a ticker to a safe file name ("^IXIC" -> "IXIC.csv").
func fileName(ticker string) string {
	name := strings.TrimPrefix(ticker, "^")
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return name + ".csv"
}

// ReadCSV parses date,close rows. The header row selects the columns.
func ReadCSV(r io.Reader) ([]domain.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateCol = i
		case "close":
			if closeCol < 0 {
				closeCol = i
			}
		case "adj close", "adj_close", "adjclose":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("header must contain date and close columns: %v", header)
	}

	var points []domain.PricePoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= dateCol || len(record) <= closeCol || strings.TrimSpace(record[closeCol]) == "" {
			continue
		}

		raw := strings.TrimSpace(record[dateCol])
		if len(raw) > len(domain.DateLayout) {
			raw = raw[:len(domain.DateLayout)] // drop time-of-day suffix
		}
		date, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: date: %w", line, err)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(record[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		points = append(points, domain.PricePoint{Date: date, Close: c})
	}
	return points, nil
}

// WriteCSV writes a series in the format ReadCSV accepts.
func WriteCSV(w io.Writer, series *domain.PriceSeries) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "close"}); err != nil {
		return err
	}
	for _, p := range series.Points() {
		if err := writer.Write([]string{
			p.Date.Format(domain.DateLayout),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

var _ Provider = (*CSVProvider)(nil)
