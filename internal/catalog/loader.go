// Package catalog loads the product catalog that drives sales generation.
//
// The primary input is the semicolon separated export used by the vending
// back office:
//
//	name;volume;price;min;max;cost
//	Капучино;0,3;150;120;180;35%
//
// Decimal fields accept either a comma or a period. Cost is an absolute amount
// or a percentage of price. A single bad row rejects the whole file.
package catalog

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

const (
	fieldsPerRow = 6

	colName   = 0
	colVolume = 1
	colPrice  = 2
	colMin    = 3
	colMax    = 4
	colCost   = 5
)

var columnNames = [fieldsPerRow]string{"name", "volume", "price", "min", "max", "cost"}

var hundred = decimal.NewFromInt(100)

// LoadError reports why a catalog could not be loaded. Line is 1-based and
// zero when the failure is not tied to a row.
type LoadError struct {
	Source string
	Line   int
	Field  string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load catalog")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type Loader struct {
	validate *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// LoadFile reads a catalog from disk. Files ending in .json are read as a
// products.json artifact; anything else as the delimited export.
func (l *Loader) LoadFile(path string) ([]models.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return l.ParseJSON(f, path)
	}
	return l.Parse(f, path)
}

// Parse reads the delimited export. The first row is a header and is skipped.
func (l *Loader) Parse(r io.Reader, source string) ([]models.Product, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var products []models.Product
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if stderrors.As(err, &perr) {
				return nil, &LoadError{Source: source, Line: perr.Line, Err: perr.Err}
			}
			return nil, &LoadError{Source: source, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if header {
			header = false
			continue
		}
		if isBlank(record) {
			continue
		}

		p, err := l.parseRow(record, len(products))
		if err != nil {
			var le *LoadError
			if stderrors.As(err, &le) {
				le.Source, le.Line = source, line
				return nil, le
			}
			return nil, &LoadError{Source: source, Line: line, Err: err}
		}
		products = append(products, p)
	}

	if header {
		return nil, &LoadError{Source: source, Err: stderrors.New("empty file")}
	}
	if len(products) == 0 {
		return nil, &LoadError{Source: source, Err: stderrors.New("no products")}
	}
	return products, nil
}

// ParseJSON reads a products.json artifact. IDs must match catalog positions.
func (l *Loader) ParseJSON(r io.Reader, source string) ([]models.Product, error) {
	var products []models.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("decode products: %w", err)}
	}
	if len(products) == 0 {
		return nil, &LoadError{Source: source, Err: stderrors.New("no products")}
	}
	for i, p := range products {
		if p.ID != i {
			return nil, &LoadError{Source: source, Field: "id", Err: fmt.Errorf("product %q has id %d at position %d", p.Name, p.ID, i)}
		}
		if err := l.check(p); err != nil {
			err.Source = source
			return nil, err
		}
	}
	return products, nil
}

// ValidateLocations checks ids are unique and weights positive.
func (l *Loader) ValidateLocations(locations []models.Location) error {
	if len(locations) == 0 {
		return &LoadError{Source: "locations", Err: stderrors.New("no locations")}
	}
	seen := make(map[int]bool, len(locations))
	for _, loc := range locations {
		if err := l.validate.Struct(loc); err != nil {
			return &LoadError{Source: "locations", Field: validationField(err), Err: err}
		}
		if seen[loc.ID] {
			return &LoadError{Source: "locations", Field: "id", Err: fmt.Errorf("duplicate location id %d", loc.ID)}
		}
		seen[loc.ID] = true
	}
	return nil
}

func (l *Loader) parseRow(record []string, id int) (models.Product, error) {
	if len(record) != fieldsPerRow {
		return models.Product{}, &LoadError{Err: fmt.Errorf("want %d fields, got %d", fieldsPerRow, len(record))}
	}

	name := strings.TrimSpace(record[colName])
	price, err := parseDecimal(record[colPrice])
	if err != nil {
		return models.Product{}, &LoadError{Field: columnNames[colPrice], Err: err}
	}
	minSales, err := parseCount(record[colMin])
	if err != nil {
		return models.Product{}, &LoadError{Field: columnNames[colMin], Err: err}
	}
	maxSales, err := parseCount(record[colMax])
	if err != nil {
		return models.Product{}, &LoadError{Field: columnNames[colMax], Err: err}
	}
	cost, err := parseCost(record[colCost], price)
	if err != nil {
		return models.Product{}, &LoadError{Field: columnNames[colCost], Err: err}
	}

	p := models.Product{
		ID:       id,
		Name:     name,
		Volume:   strings.TrimSpace(record[colVolume]),
		Price:    models.NewMoney(price),
		Cost:     models.NewMoney(cost),
		Min:      minSales,
		Max:      maxSales,
		Category: Classify(name),
	}
	if err := l.check(p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (l *Loader) check(p models.Product) *LoadError {
	if p.Price.IsNegative() {
		return &LoadError{Field: "price", Err: fmt.Errorf("negative price %s", p.Price)}
	}
	if p.Cost.IsNegative() {
		return &LoadError{Field: "cost", Err: fmt.Errorf("negative cost %s", p.Cost)}
	}
	if err := l.validate.Struct(p); err != nil {
		return &LoadError{Field: validationField(err), Err: err}
	}
	return nil
}

func validationField(err error) string {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field())
	}
	return ""
}

// normalizeNumber strips spaces used as thousands separators and turns a
// decimal comma into a period.
func normalizeNumber(s string) string {
	return numberReplacer.Replace(strings.TrimSpace(s))
}

var numberReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".")

func parseDecimal(s string) (decimal.Decimal, error) {
	n := normalizeNumber(s)
	if n == "" {
		return decimal.Decimal{}, stderrors.New("missing value")
	}
	d, err := decimal.NewFromString(n)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number: %q", s)
	}
	return d, nil
}

func parseCount(s string) (int, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(d.IntPart()), nil
}

func parseCost(s string, price decimal.Decimal) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(trimmed, "%"); ok {
		p, err := parseDecimal(pct)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return price.Mul(p).Div(hundred), nil
	}
	return parseDecimal(trimmed)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
