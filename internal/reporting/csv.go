package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders ranked results as CSV string.
// Parameters are quoted because they contain commas.
func RenderCSV(rows []ResultRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{
		"rank", "result_id", "grid_index", "params", "score",
		"final_value", "max_drawdown", "injected", "buy_count",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Rank),
			r.ResultID,
			strconv.Itoa(r.GridIndex),
			r.Params,
			strconv.FormatFloat(r.Score, 'f', 6, 64),
			formatMoney(r.FinalValue),
			strconv.FormatFloat(r.MaxDrawdown, 'f', 6, 64),
			formatMoney(r.Injected),
			strconv.Itoa(r.BuyCount),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}
