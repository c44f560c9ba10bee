// Package rating defines the credit rating severity scale, its terminal
// symbols and the risk buckets used by the fallback hazard model.
package rating

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

// ErrUnknownRating is returned for symbols that are not on the scale.
var ErrUnknownRating = errors.New("unknown rating symbol")

// ════════════════════════════════════════════════════════════════════
// Buckets
// ════════════════════════════════════════════════════════════════════

// Bucket is a coarse severity tier.
type Bucket int

const (
	BucketPrime Bucket = iota
	BucketHighGrade
	BucketMediumGrade
	BucketSpeculative
	BucketHighRisk
)

var bucketNames = [...]string{"prime", "high_grade", "medium_grade", "speculative", "high_risk"}

func (b Bucket) String() string {
	if b < 0 || int(b) >= len(bucketNames) {
		return fmt.Sprintf("bucket(%d)", int(b))
	}
	return bucketNames[b]
}

// Buckets returns every bucket from best to worst.
func Buckets() []Bucket {
	return []Bucket{BucketPrime, BucketHighGrade, BucketMediumGrade, BucketSpeculative, BucketHighRisk}
}

// ════════════════════════════════════════════════════════════════════
// Scale
// ════════════════════════════════════════════════════════════════════

// ScaleDef describes a rating scale in terms of symbols only.
type ScaleDef struct {
	// Symbols ordered from best to worst. Must end with Default.
	Symbols []string
	// Default is the absorbing default symbol.
	Default string
	// Withdrawn lists the absorbing not-rated symbols. They share the
	// severity just past Default.
	Withdrawn []string
	// InvestmentGradeFloor is the worst investment-grade symbol.
	InvestmentGradeFloor string
	// BucketFloors holds the worst symbol of each bucket except the last.
	BucketFloors []string
	// Aliases maps alternative spellings to scale symbols.
	Aliases map[string]string
}

// Scale is an immutable, totally ordered rating scale. Lower severity is
// better credit quality.
type Scale struct {
	symbols       []string
	severity      map[string]int
	aliases       map[string]string
	defaultSym    string
	withdrawn     map[string]bool
	withdrawnSyms []string
	withdrawnAt   int
	igFloor       int
	bucketFloor   []int
}

// NewScale validates def and builds a Scale.
func NewScale(def ScaleDef) (*Scale, error) {
	if len(def.Symbols) < 2 {
		return nil, errors.New("rating scale needs at least two symbols")
	}
	s := &Scale{
		severity:   make(map[string]int, len(def.Symbols)+len(def.Withdrawn)),
		aliases:    make(map[string]string, len(def.Aliases)),
		defaultSym: normalize(def.Default),
		withdrawn:  make(map[string]bool, len(def.Withdrawn)),
	}
	for i, sym := range def.Symbols {
		n := normalize(sym)
		if _, dup := s.severity[n]; dup {
			return nil, fmt.Errorf("duplicate rating symbol %q", sym)
		}
		s.symbols = append(s.symbols, n)
		s.severity[n] = i
	}
	if s.symbols[len(s.symbols)-1] != s.defaultSym {
		return nil, fmt.Errorf("default symbol %q must be the last symbol of the scale", def.Default)
	}
	if len(def.Withdrawn) == 0 {
		return nil, errors.New("rating scale needs a withdrawn symbol")
	}
	s.withdrawnAt = len(s.symbols)
	for _, sym := range def.Withdrawn {
		n := normalize(sym)
		if _, dup := s.severity[n]; dup {
			return nil, fmt.Errorf("duplicate rating symbol %q", sym)
		}
		s.withdrawn[n] = true
		s.withdrawnSyms = append(s.withdrawnSyms, n)
		s.severity[n] = s.withdrawnAt
	}
	for alias, target := range def.Aliases {
		t := normalize(target)
		if _, ok := s.severity[t]; !ok {
			return nil, fmt.Errorf("alias %q points to unknown symbol %q", alias, target)
		}
		s.aliases[normalize(alias)] = t
	}

	ig, ok := s.severity[normalize(def.InvestmentGradeFloor)]
	if !ok {
		return nil, fmt.Errorf("investment grade floor %q: %w", def.InvestmentGradeFloor, ErrUnknownRating)
	}
	s.igFloor = ig

	if len(def.BucketFloors) != len(bucketNames)-1 {
		return nil, fmt.Errorf("need %d bucket floors, got %d", len(bucketNames)-1, len(def.BucketFloors))
	}
	prev := -1
	for _, sym := range def.BucketFloors {
		sev, ok := s.severity[normalize(sym)]
		if !ok {
			return nil, fmt.Errorf("bucket floor %q: %w", sym, ErrUnknownRating)
		}
		if sev <= prev {
			return nil, fmt.Errorf("bucket floors must be ordered best to worst, %q is out of order", sym)
		}
		s.bucketFloor = append(s.bucketFloor, sev)
		prev = sev
	}
	return s, nil
}

// StandardDef is the 22-notch scale AAA..D with NR and WD as withdrawn.
func StandardDef() ScaleDef {
	return ScaleDef{
		Symbols: []string{
			"AAA", "AA+", "AA", "AA-",
			"A+", "A", "A-",
			"BBB+", "BBB", "BBB-",
			"BB+", "BB", "BB-",
			"B+", "B", "B-",
			"CCC+", "CCC", "CCC-", "CC", "C",
			"D",
		},
		Default:              "D",
		Withdrawn:            []string{"NR", "WD"},
		InvestmentGradeFloor: "BBB-",
		BucketFloors:         []string{"AA-", "A-", "BBB-", "B-"},
		Aliases: map[string]string{
			"WITHDRAWN": "WD",
			"NOT RATED": "NR",
			"DEFAULT":   "D",
			"SD":        "D",
		},
	}
}

var standard = mustScale(StandardDef())

// Standard returns the shared standard scale. Scales are immutable.
func Standard() *Scale {
	return standard
}

func mustScale(def ScaleDef) *Scale {
	s, err := NewScale(def)
	if err != nil {
		panic(err)
	}
	return s
}

func normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// canonical resolves aliases and case; it does not accept numbers.
func (s *Scale) canonical(sym string) (string, bool) {
	n := normalize(sym)
	if t, ok := s.aliases[n]; ok {
		n = t
	}
	_, ok := s.severity[n]
	return n, ok
}

// Severity returns the numeric severity of a symbol. Numeric strings are
// accepted as severities directly.
func (s *Scale) Severity(sym string) (int, error) {
	_, sev, err := s.Resolve(sym)
	return sev, err
}

// Resolve returns the canonical symbol and severity for a symbol or a
// numeric severity string. Numeric withdrawn severity resolves to the
// first withdrawn symbol.
func (s *Scale) Resolve(ref string) (string, int, error) {
	if n, ok := s.canonical(ref); ok {
		return n, s.severity[n], nil
	}
	if v, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		if sym, ok := s.Symbol(v); ok {
			return sym, v, nil
		}
	}
	return "", 0, fmt.Errorf("%q: %w", ref, ErrUnknownRating)
}

// Symbol returns the symbol for a severity.
func (s *Scale) Symbol(sev int) (string, bool) {
	switch {
	case sev >= 0 && sev < len(s.symbols):
		return s.symbols[sev], true
	case sev == s.withdrawnAt:
		return s.withdrawnSyms[0], true
	}
	return "", false
}

// Symbols returns the ordinary symbols best to worst, ending with Default.
func (s *Scale) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// IsDefault reports whether sym is the default symbol.
func (s *Scale) IsDefault(sym string) bool {
	n, ok := s.canonical(sym)
	return ok && n == s.defaultSym
}

// IsWithdrawn reports whether sym is a withdrawn or not-rated symbol.
func (s *Scale) IsWithdrawn(sym string) bool {
	n, ok := s.canonical(sym)
	return ok && s.withdrawn[n]
}

// IsTerminal reports whether sym is absorbing.
func (s *Scale) IsTerminal(sym string) bool {
	return s.IsDefault(sym) || s.IsWithdrawn(sym)
}

// InvestmentGrade reports whether sev is at or above the investment-grade floor.
func (s *Scale) InvestmentGrade(sev int) bool {
	return sev >= 0 && sev <= s.igFloor
}

// Bucket maps a severity to its tier. Default and withdrawn fall in the
// worst bucket.
func (s *Scale) Bucket(sev int) Bucket {
	for i, floor := range s.bucketFloor {
		if sev <= floor {
			return Bucket(i)
		}
	}
	return BucketHighRisk
}

// Classify labels the move from one symbol to another. Terminal symbols
// take precedence over severity comparison.
func (s *Scale) Classify(from, to string) (models.TransitionType, error) {
	_, fromSev, err := s.Resolve(from)
	if err != nil {
		return "", err
	}
	toSym, toSev, err := s.Resolve(to)
	if err != nil {
		return "", err
	}

	switch {
	case toSym == s.defaultSym:
		return models.TransitionDefault, nil
	case s.withdrawn[toSym]:
		return models.TransitionWithdrawn, nil
	case toSev < fromSev:
		return models.TransitionUpgrade, nil
	case toSev > fromSev:
		return models.TransitionDowngrade, nil
	default:
		return models.TransitionStable, nil
	}
}
