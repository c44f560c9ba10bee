package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ratingrisk/pkg/models"
)

func TestSeverityIsStrictTotalOrder(t *testing.T) {
	s := Standard()
	syms := s.Symbols()
	require.Len(t, syms, 22)

	for i := 1; i < len(syms); i++ {
		prev, err := s.Severity(syms[i-1])
		require.NoError(t, err)
		cur, err := s.Severity(syms[i])
		require.NoError(t, err)
		assert.Less(t, prev, cur, "%s should rank better than %s", syms[i-1], syms[i])
	}

	chain := []string{"AAA", "A", "BBB", "BB", "B", "D"}
	for i := 1; i < len(chain); i++ {
		a, _ := s.Severity(chain[i-1])
		b, _ := s.Severity(chain[i])
		assert.Less(t, a, b)
	}
}

func TestSeverityLookup(t *testing.T) {
	s := Standard()

	tests := []struct {
		in   string
		want int
	}{
		{"AAA", 0},
		{"aa+", 1},
		{" BBB- ", 9},
		{"D", 21},
		{"NR", 22},
		{"WD", 22},
		{"Withdrawn", 22},
		{"17", 17},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := s.Severity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Severity("ZZZ")
	assert.ErrorIs(t, err, ErrUnknownRating)
	_, err = s.Severity("99")
	assert.ErrorIs(t, err, ErrUnknownRating)
}

func TestResolveNumeric(t *testing.T) {
	s := Standard()

	sym, sev, err := s.Resolve("8")
	require.NoError(t, err)
	assert.Equal(t, "BBB", sym)
	assert.Equal(t, 8, sev)

	sym, _, err = s.Resolve("22")
	require.NoError(t, err)
	assert.Equal(t, "NR", sym)
}

func TestInvestmentGradeAndBuckets(t *testing.T) {
	s := Standard()

	bbbMinus, _ := s.Severity("BBB-")
	bbPlus, _ := s.Severity("BB+")
	assert.True(t, s.InvestmentGrade(bbbMinus))
	assert.False(t, s.InvestmentGrade(bbPlus))

	tests := map[string]Bucket{
		"AAA":  BucketPrime,
		"AA-":  BucketPrime,
		"A+":   BucketHighGrade,
		"A-":   BucketHighGrade,
		"BBB+": BucketMediumGrade,
		"BBB-": BucketMediumGrade,
		"BB+":  BucketSpeculative,
		"B-":   BucketSpeculative,
		"CCC":  BucketHighRisk,
		"D":    BucketHighRisk,
		"NR":   BucketHighRisk,
	}
	for sym, want := range tests {
		sev, err := s.Severity(sym)
		require.NoError(t, err)
		assert.Equal(t, want, s.Bucket(sev), sym)
	}
	assert.Equal(t, "medium_grade", BucketMediumGrade.String())
}

func TestClassify(t *testing.T) {
	s := Standard()

	tests := []struct {
		from, to string
		want     models.TransitionType
	}{
		{"BBB", "A", models.TransitionUpgrade},
		{"A", "BBB", models.TransitionDowngrade},
		{"BB", "BB", models.TransitionStable},
		{"CCC", "D", models.TransitionDefault},
		{"AAA", "D", models.TransitionDefault},
		{"BBB", "NR", models.TransitionWithdrawn},
		{"CCC", "WD", models.TransitionWithdrawn},
		{"C", "Withdrawn", models.TransitionWithdrawn},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			got, err := s.Classify(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Classify("BBB", "Q")
	assert.ErrorIs(t, err, ErrUnknownRating)
}

func TestExtendedScaleClassifiesBySymbol(t *testing.T) {
	def := StandardDef()
	// Insert a notch below C: default must still be recognised by symbol.
	def.Symbols = append(def.Symbols[:21:21], "C-", "D")
	s, err := NewScale(def)
	require.NoError(t, err)

	got, err := s.Classify("C-", "D")
	require.NoError(t, err)
	assert.Equal(t, models.TransitionDefault, got)

	got, err = s.Classify("C", "C-")
	require.NoError(t, err)
	assert.Equal(t, models.TransitionDowngrade, got)

	sev, _ := s.Severity("NR")
	assert.Equal(t, 23, sev)
}

func TestNewScaleValidation(t *testing.T) {
	def := StandardDef()
	def.Default = "C"
	_, err := NewScale(def)
	assert.Error(t, err)

	def = StandardDef()
	def.BucketFloors = []string{"A-", "AA-", "BBB-", "B-"}
	_, err = NewScale(def)
	assert.Error(t, err)

	def = StandardDef()
	def.Withdrawn = nil
	_, err = NewScale(def)
	assert.Error(t, err)
}
