// Package pricing fits per-material and per-finish cost coefficients from
// historical quote rows and prices configured parts against the fitted table.
package pricing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Row is one priced historical part, the unit of training data.
type Row struct {
	PartNumber   string  `json:"part_number"`
	MaterialType string  `json:"material_type"`
	Grade        string  `json:"grade"`
	Finish       string  `json:"finish"`
	ThicknessIn  float64 `json:"thickness_in"`
	MatUseSqIn   float64 `json:"mat_use_sqin"`
	SurfSqIn     float64 `json:"surf_sqin"`
	NumCuts      int     `json:"num_cuts"`
	Price        float64 `json:"price"`
}

// rowColumns is the expected CSV header, in order.
var rowColumns = []string{
	"part_number", "material_type", "grade", "finish",
	"thickness_in", "mat_use_sqin", "surf_sqin", "num_cuts", "price",
}

// ReadRows parses training rows from CSV with the canonical header.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(rowColumns) {
		return nil, fmt.Errorf("header has %d columns, want %d", len(header), len(rowColumns))
	}
	for i, want := range rowColumns {
		if header[i] != want {
			return nil, fmt.Errorf("column %d is %q, want %q", i, header[i], want)
		}
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadRowsCSV reads training rows from a file.
func LoadRowsCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

func parseRow(rec []string) (Row, error) {
	row := Row{
		PartNumber:   rec[0],
		MaterialType: rec[1],
		Grade:        rec[2],
		Finish:       rec[3],
	}
	var err error
	if row.ThicknessIn, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return row, fmt.Errorf("thickness_in: %w", err)
	}
	if row.MatUseSqIn, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return row, fmt.Errorf("mat_use_sqin: %w", err)
	}
	if row.SurfSqIn, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return row, fmt.Errorf("surf_sqin: %w", err)
	}
	if row.NumCuts, err = strconv.Atoi(rec[7]); err != nil {
		return row, fmt.Errorf("num_cuts: %w", err)
	}
	if row.Price, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return row, fmt.Errorf("price: %w", err)
	}
	if row.Price < 0 {
		return row, fmt.Errorf("negative price %v", row.Price)
	}
	return row, nil
}
