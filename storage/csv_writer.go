package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vehicle-etl/models"
)

// CSVWriter exports cleaned listings to a CSV file for notebook and
// dashboard consumers.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(cleanColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

// WriteClean appends one row per listing. Nil fields are written as empty cells.
func (c *CSVWriter) WriteClean(listings []*models.CleanListing) error {
	for _, l := range listings {
		row := []string{
			l.ID,
			l.URL,
			cellString(l.Brand),
			cellString(l.Model),
			cellInt(l.Year),
			cellInt64(l.PriceLocal),
			cellInt64(l.PriceSecondary),
			cellInt(l.Mileage),
			cellString(l.FuelType),
			cellString(l.Transmission),
			cellInt(l.EngineCC),
			cellString(l.ColorExterior),
			cellString(l.ColorInterior),
			cellString(l.SellerPhone),
			cellString(l.SellerWhatsapp),
			cellString(l.Description),
			cellFloat(l.ExchangeRate),
			strconv.FormatBool(l.PriceFlag),
			cellInt(l.VehicleAge),
			cellFloat(l.PricePerYear),
			strconv.FormatBool(l.IsLuxury),
			cellTime(l.ScrapedAt),
			cellTime(l.LoadedAt),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func cellString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cellInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func cellInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func cellFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func cellTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
