package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads extra catalog rows from a CSV file with columns
// symbol,name,exchange,aliases,popularity (aliases pipe-separated, header
// row optional). Malformed rows are skipped rather than failing the load.
func LoadCSV(path string) ([]Stock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var stocks []Stock
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog csv: %w", err)
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), "symbol") {
				continue
			}
		}
		if len(rec) < 2 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(rec[0]))
		name := strings.TrimSpace(rec[1])
		if symbol == "" || name == "" {
			continue
		}
		s := Stock{Symbol: symbol, Name: name}
		if len(rec) > 2 {
			s.Exchange = strings.ToUpper(strings.TrimSpace(rec[2]))
		}
		if len(rec) > 3 {
			for _, a := range strings.Split(rec[3], "|") {
				a = strings.ToLower(strings.TrimSpace(a))
				if a != "" {
					s.Aliases = append(s.Aliases, a)
				}
			}
		}
		if len(rec) > 4 {
			if p, err := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64); err == nil && p >= 0 {
				s.Popularity = p
			}
		}
		stocks = append(stocks, s)
	}
	return stocks, nil
}
