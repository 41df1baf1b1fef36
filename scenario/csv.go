package scenario

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

// WriteCSV streams the price series as "tick,price" rows. The plotting layer
// consumes this file; the simulator itself never renders anything.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tick", "price"}); err != nil {
		return err
	}
	for _, pt := range r.Prices {
		row := []string{strconv.FormatUint(pt.Tick, 10), pt.Price.String()}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the price series to a file.
func (r *Result) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
