// Package catalog decodes product feeds: JSON lines, optionally gzip
// compressed, one product per line.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// maxLineBytes bounds a single feed line.
const maxLineBytes = 1 << 20

// Record is one line of a feed.
type Record struct {
	SKU           string          `json:"sku" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=4000"`
	Category      string          `json:"category" validate:"max=255"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	IsActive      *bool           `json:"isActive"`
	IsFeatured    bool            `json:"isFeatured"`
	Tags          []string        `json:"tags" validate:"max=32,dive,required,max=64"`
	Variants      []VariantRecord `json:"variants" validate:"dive"`
}

// VariantRecord is a variant line nested in a Record.
type VariantRecord struct {
	SKU           string          `json:"sku" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=255"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0"`
	IsActive      *bool           `json:"isActive"`
}

// Decoder validates and converts feed records.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Parse decodes a single line into an ImportRecord.
func (d *Decoder) Parse(line []byte) (product.ImportRecord, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return product.ImportRecord{}, errors.Wrap(err, "decode")
	}
	if err := d.validate.Struct(rec); err != nil {
		return product.ImportRecord{}, errors.Wrap(err, "validate")
	}
	if !rec.Price.IsPositive() {
		return product.ImportRecord{}, errors.Errorf("sku %s: price must be positive", rec.SKU)
	}

	out := product.ImportRecord{
		SKU:           strings.TrimSpace(rec.SKU),
		Name:          rec.Name,
		Description:   rec.Description,
		Category:      strings.TrimSpace(rec.Category),
		Price:         rec.Price.Round(2),
		StockQuantity: rec.StockQuantity,
		IsActive:      boolOr(rec.IsActive, true),
		IsFeatured:    rec.IsFeatured,
		Tags:          rec.Tags,
	}
	seen := map[string]bool{out.SKU: true}
	for _, v := range rec.Variants {
		if !v.Price.IsPositive() {
			return product.ImportRecord{}, errors.Errorf("variant %s: price must be positive", v.SKU)
		}
		sku := strings.TrimSpace(v.SKU)
		if seen[sku] {
			return product.ImportRecord{}, errors.Errorf("duplicate sku %s", sku)
		}
		seen[sku] = true
		out.Variants = append(out.Variants, product.VariantRecord{
			SKU:           sku,
			Name:          v.Name,
			Price:         v.Price.Round(2),
			StockQuantity: v.StockQuantity,
			IsActive:      boolOr(v.IsActive, true),
		})
	}
	return out, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Stats counts the outcome of a Scan.
type Stats struct {
	Lines   int
	Records int
	Invalid int
}

// Scan reads r line by line and calls fn for every valid record. Blank lines
// and lines starting with '#' are skipped. A line that fails to parse is
// passed to onInvalid and scanning continues; an error from fn stops it.
func (d *Decoder) Scan(
	ctx context.Context,
	r io.Reader,
	fn func(product.ImportRecord) error,
	onInvalid func(line int, err error),
) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		rec, err := d.Parse(line)
		if err != nil {
			stats.Invalid++
			if onInvalid != nil {
				onInvalid(stats.Lines, err)
			}
			continue
		}
		if err := fn(rec); err != nil {
			return stats, err
		}
		stats.Records++
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, "scan")
	}
	return stats, nil
}

// Open opens a feed file. Names ending in ".gz" are decompressed.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return &gzipFile{Reader: gz, f: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}
