package beta

import (
	"math"
	"strings"

	"github.com/beta-portfolio/internal/types"
)

// BetaQuality flags whether a position's betas were estimated from price
// history or defaulted because history was unavailable.
type BetaQuality string

const (
	// QualityEstimated means the beta came from an actual regression window
	QualityEstimated BetaQuality = "estimated"
	// QualityFallback means the beta is the documented market-neutral default
	QualityFallback BetaQuality = "fallback"
)

// PositionBeta is a selected position annotated with its per-benchmark betas.
type PositionBeta struct {
	types.Position
	Betas   map[types.BenchmarkKey]float64 `json:"betas"`
	Quality BetaQuality                    `json:"dataQuality"`
}

// PortfolioResult is the final output of one analysis run. It is owned by
// the caller for the duration of one request and never shared across runs.
type PortfolioResult struct {
	Wallet         string                         `json:"wallet"`
	TotalValue     float64                        `json:"totalValue"`
	Positions      []PositionBeta                 `json:"positions"`
	PortfolioBetas map[types.BenchmarkKey]float64 `json:"portfolioBetas,omitempty"`
	Score          float64                        `json:"score"`
	ScoreBreakdown map[string]float64             `json:"scoreBreakdown,omitempty"`
	ScoringMode    string                         `json:"scoringMode"`
	TokenCount     int                            `json:"tokenCount"`
}

// ScoringInput carries everything either scoring mode can consume. The two
// modes read disjoint parts of it: beta scoring uses the portfolio betas,
// category scoring uses the full position scan.
type ScoringInput struct {
	Selected       []PositionBeta
	AllPositions   []types.Position
	PortfolioBetas map[types.BenchmarkKey]float64
}

// ScoreResult is a 0-100 stability score with its components.
type ScoreResult struct {
	Score     float64
	Breakdown map[string]float64
}

// ScoringStrategy maps one analysis' holdings to a stability score. The two
// implementations are NOT interchangeable approximations of the same
// quantity: BetaScoring is derived from measured price co-movement, while
// CategoryScoring is a static symbol-classification heuristic used when no
// price history is available.
type ScoringStrategy interface {
	Name() string
	Score(in ScoringInput) ScoreResult
}

// BetaScoring scores each benchmark's portfolio beta on a linear penalty
// around 1: a portfolio that perfectly tracks the benchmark scores 100, and
// every unit of deviation in either direction costs 50 points, floored at 0.
// The final score is the unweighted mean of the per-benchmark sub-scores.
type BetaScoring struct{}

// Name implements ScoringStrategy.
func (BetaScoring) Name() string { return "beta" }

// SubScore maps one portfolio beta to its 0-100 stability sub-score.
func (BetaScoring) SubScore(portfolioBeta float64) float64 {
	return math.Max(0, 100-math.Abs(portfolioBeta-1)*50)
}

// Score implements ScoringStrategy.
func (s BetaScoring) Score(in ScoringInput) ScoreResult {
	breakdown := make(map[string]float64, len(in.PortfolioBetas))
	var sum float64
	for key, b := range in.PortfolioBetas {
		sub := s.SubScore(b)
		breakdown[strings.ToLower(string(key))+"_score"] = sub
		sum += sub
	}
	if len(breakdown) == 0 {
		return ScoreResult{Score: 0, Breakdown: breakdown}
	}
	return ScoreResult{Score: sum / float64(len(breakdown)), Breakdown: breakdown}
}

// Category buckets a symbol for the heuristic scoring mode.
type Category string

const (
	// CategoryStable covers stablecoins and major assets
	CategoryStable Category = "stable"
	// CategoryVolatile covers speculative and meme assets
	CategoryVolatile Category = "volatile"
	// CategoryNormal covers everything else
	CategoryNormal Category = "normal"
)

// Classifier assigns a category to a token symbol. It is injectable so the
// taxonomy can change without touching aggregation logic.
type Classifier interface {
	Classify(symbol string) Category
}

// SymbolClassifier classifies by case-insensitive set membership.
type SymbolClassifier struct {
	stable   map[string]struct{}
	volatile map[string]struct{}
}

// NewSymbolClassifier builds a classifier from explicit symbol sets.
func NewSymbolClassifier(stable, volatile []string) *SymbolClassifier {
	c := &SymbolClassifier{
		stable:   make(map[string]struct{}, len(stable)),
		volatile: make(map[string]struct{}, len(volatile)),
	}
	for _, s := range stable {
		c.stable[strings.ToUpper(s)] = struct{}{}
	}
	for _, s := range volatile {
		c.volatile[strings.ToUpper(s)] = struct{}{}
	}
	return c
}

// DefaultClassifier returns the built-in taxonomy: stablecoins and majors on
// one side, meme and speculative assets on the other.
func DefaultClassifier() *SymbolClassifier {
	return NewSymbolClassifier(
		[]string{
			"USDC", "USDT", "DAI", "BUSD", "FRAX", "TUSD", "USDP", "GUSD", "LUSD", "SUSD",
			"ETH", "WETH", "EZETH", "RWETH", "ABASWETH", "SEZETH", "SWETH-WSTETH",
		},
		[]string{
			"PEPE", "DOGE", "SHIB", "FLOKI", "BONK", "WIF", "BOME", "DEGEN", "MOON", "SAFE",
			"APE", "GALA", "CHZ", "HOT", "BTT", "WIN", "TRX", "ADA", "DOT", "LINK",
		},
	)
}

// Classify implements Classifier.
func (c *SymbolClassifier) Classify(symbol string) Category {
	key := strings.ToUpper(symbol)
	if _, ok := c.stable[key]; ok {
		return CategoryStable
	}
	if _, ok := c.volatile[key]; ok {
		return CategoryVolatile
	}
	return CategoryNormal
}

// CategoryScoring assigns each held asset a base score by category and value
// tier, value-weights the base scores, then applies a diversification
// adjustment: +5 when more than 10 distinct assets are held, -10 when fewer
// than 3. The result is clamped to [0, 100]. It uses no price history at all.
type CategoryScoring struct {
	Classifier Classifier
}

// Name implements ScoringStrategy.
func (CategoryScoring) Name() string { return "category" }

// Score implements ScoringStrategy.
func (s CategoryScoring) Score(in ScoringInput) ScoreResult {
	classifier := s.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	positions := in.AllPositions
	var total float64
	for _, p := range positions {
		total += p.USDValue
	}
	if len(positions) == 0 || total == 0 {
		return ScoreResult{Score: 0, Breakdown: map[string]float64{}}
	}

	breakdown := make(map[string]float64, len(positions))
	var weighted float64
	for _, p := range positions {
		base := baseScore(classifier.Classify(p.Symbol), p.USDValue)
		breakdown[p.Symbol] = base
		weighted += base * (p.USDValue / total)
	}

	// Diversification adjustment.
	switch n := len(positions); {
	case n > 10:
		weighted += 5
	case n < 3:
		weighted -= 10
	}

	return ScoreResult{Score: clamp(weighted, 0, 100), Breakdown: breakdown}
}

// baseScore maps a category and USD value to a base score. Larger holdings
// within a category score as more stable.
func baseScore(cat Category, usd float64) float64 {
	switch cat {
	case CategoryStable:
		return math.Min(100, 90+usd/1000*10)
	case CategoryVolatile:
		return math.Min(50, 30+usd/1000*20)
	default:
		switch {
		case usd > 1000:
			return 70
		case usd > 100:
			return 60
		case usd > 10:
			return 50
		default:
			return 40
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
