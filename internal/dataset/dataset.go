// Package dataset loads rating histories, financial statements and firm
// profiles from JSON or YAML files.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/ratingrisk/pkg/models"
	"github.com/seenimoa/ratingrisk/pkg/utils"
)

// Format is a dataset file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for files that are neither JSON nor YAML.
var ErrUnknownFormat = errors.New("unknown dataset format")

// Dataset is everything the pipeline reads from disk.
type Dataset struct {
	Observations []models.RatingObservation
	Panel        []models.RatingPanelRow
	Snapshots    []models.CovariateSnapshot
	Statements   []models.FinancialStatement
	Firms        []models.FirmProfile
}

// Empty reports whether the dataset carries no rating history.
func (d *Dataset) Empty() bool {
	return len(d.Observations) == 0 && len(d.Panel) == 0
}

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads a dataset file.
func Load(path string) (*Dataset, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer fh.Close()

	ds, err := Decode(fh, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Decode reads a dataset document from r.
func Decode(r io.Reader, f Format) (*Dataset, error) {
	var doc document
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return doc.dataset()
}

// document mirrors the file layout. Dates stay strings until converted
// so that "YYYY-MM-DD" works in both encodings.
type document struct {
	Observations []ratingRecord       `json:"observations" yaml:"observations"`
	Panel        []ratingRecord       `json:"panel"        yaml:"panel"`
	Snapshots    []snapshotRecord     `json:"snapshots"    yaml:"snapshots"`
	Statements   []statementRecord    `json:"statements"   yaml:"statements"`
	Firms        []models.FirmProfile `json:"firms"        yaml:"firms"`
}

type ratingRecord struct {
	IssuerID string           `json:"issuer_id" yaml:"issuer_id"`
	Date     string           `json:"date"      yaml:"date"`
	Rating   models.RatingRef `json:"rating"    yaml:"rating"`
}

type snapshotRecord struct {
	IssuerID string             `json:"issuer_id" yaml:"issuer_id"`
	Date     string             `json:"date"      yaml:"date"`
	Ratios   map[string]float64 `json:"ratios"    yaml:"ratios"`
}

type statementRecord struct {
	IssuerID string `json:"issuer_id" yaml:"issuer_id"`
	Date     string `json:"date"      yaml:"date"`

	TotalAssets          float64 `json:"total_assets"           yaml:"total_assets"`
	TotalLiabilities     float64 `json:"total_liabilities"      yaml:"total_liabilities"`
	TotalEquity          float64 `json:"total_equity"           yaml:"total_equity"`
	CurrentAssets        float64 `json:"current_assets"         yaml:"current_assets"`
	CurrentLiabilities   float64 `json:"current_liabilities"    yaml:"current_liabilities"`
	Cash                 float64 `json:"cash"                   yaml:"cash"`
	ShortTermInvestments float64 `json:"short_term_investments" yaml:"short_term_investments"`
	Receivables          float64 `json:"receivables"            yaml:"receivables"`

	Revenue         float64 `json:"revenue"          yaml:"revenue"`
	OperatingProfit float64 `json:"operating_profit" yaml:"operating_profit"`
	NetIncome       float64 `json:"net_income"       yaml:"net_income"`
	InterestExpense float64 `json:"interest_expense" yaml:"interest_expense"`
}

func (d document) dataset() (*Dataset, error) {
	ds := &Dataset{Firms: d.Firms}

	for i, r := range d.Observations {
		date, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("observations[%d]: %w", i, err)
		}
		ds.Observations = append(ds.Observations, models.RatingObservation{
			IssuerID: r.IssuerID, Date: date, Rating: string(r.Rating),
		})
	}
	for i, r := range d.Panel {
		date, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("panel[%d]: %w", i, err)
		}
		ds.Panel = append(ds.Panel, models.RatingPanelRow{
			IssuerID: r.IssuerID, Date: date, Rating: string(r.Rating),
		})
	}
	for i, r := range d.Snapshots {
		date, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("snapshots[%d]: %w", i, err)
		}
		ds.Snapshots = append(ds.Snapshots, models.CovariateSnapshot{
			IssuerID: r.IssuerID, Date: date, Ratios: r.Ratios,
		})
	}
	for i, r := range d.Statements {
		date, err := utils.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("statements[%d]: %w", i, err)
		}
		ds.Statements = append(ds.Statements, models.FinancialStatement{
			IssuerID:             r.IssuerID,
			Date:                 date,
			TotalAssets:          r.TotalAssets,
			TotalLiabilities:     r.TotalLiabilities,
			TotalEquity:          r.TotalEquity,
			CurrentAssets:        r.CurrentAssets,
			CurrentLiabilities:   r.CurrentLiabilities,
			Cash:                 r.Cash,
			ShortTermInvestments: r.ShortTermInvestments,
			Receivables:          r.Receivables,
			Revenue:              r.Revenue,
			OperatingProfit:      r.OperatingProfit,
			NetIncome:            r.NetIncome,
			InterestExpense:      r.InterestExpense,
		})
	}
	return ds, nil
}
