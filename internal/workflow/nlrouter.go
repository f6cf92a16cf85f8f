package workflow

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/smartspec/internal/ctxutil"
	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// ConfidenceFloor is the score below which a classification is not trusted
// and the query falls back to a status query.
const ConfidenceFloor = 0.6

// specIDMentionRegex finds a canonical spec identifier anywhere in free text.
var specIDMentionRegex = regexp.MustCompile(`\bspec-[a-z]+-\d+-[a-z0-9]+(?:-[a-z0-9]+)*\b`)

// keyword is one weighted lexical signal for a query kind.
type keyword struct {
	re     *regexp.Regexp
	weight int
}

func mustKeyword(phrase string, weight int) keyword {
	return keyword{
		re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`),
		weight: weight,
	}
}

// kindKeywords drive the lexical classifier. Scores are additive; the same
// input can hit several phrases of one kind.
//
//nolint:gochecknoglobals // static classifier vocabulary
var kindKeywords = map[domain.QueryKind][]keyword{
	domain.QueryStatus: {
		mustKeyword("status", 2),
		mustKeyword("progress", 2),
		mustKeyword("how far", 2),
		mustKeyword("running", 1),
		mustKeyword("events", 1),
		mustKeyword("happening", 1),
		mustKeyword("show me", 1),
	},
	domain.QueryRecommendation: {
		mustKeyword("what should", 2),
		mustKeyword("recommend", 2),
		mustKeyword("do next", 2),
		mustKeyword("what next", 2),
		mustKeyword("next step", 2),
		mustKeyword("what's left", 2),
		mustKeyword("suggest", 1),
		mustKeyword("work on", 1),
		mustKeyword("run", 1),
		mustKeyword("execute", 1),
	},
	domain.QueryExistence: {
		mustKeyword("exist", 2),
		mustKeyword("exists", 2),
		mustKeyword("is there", 2),
		mustKeyword("do we have", 2),
		mustKeyword("have a", 1),
		mustKeyword("already", 1),
	},
	domain.QueryComplex: {
		mustKeyword("and then", 2),
		mustKeyword("after that", 2),
		mustKeyword("end to end", 2),
		mustKeyword("all the way", 2),
		mustKeyword("then", 1),
		mustKeyword("everything", 1),
	},
}

// NLRouter classifies free-form requests lexically, with no model call.
// It is the default classifier; a gateway-backed classifier can replace it
// where richer intent parsing is worth the credits.
type NLRouter struct {
	registry *Registry
}

// NewNLRouter returns a lexical router that recognizes the workflow names
// registered in registry.
func NewNLRouter(registry *Registry) *NLRouter {
	return &NLRouter{registry: registry}
}

// Route classifies input and extracts any spec identifier or workflow name
// it mentions. Confidence below ConfidenceFloor coerces the kind to
// status_query and sets Fallback.
func (n *NLRouter) Route(ctx context.Context, input string) (*domain.RoutedQuery, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return nil, sserrors.Wrap(sserrors.ErrInvalidArgument, "empty query")
	}

	routed := &domain.RoutedQuery{}
	if m := specIDMentionRegex.FindString(text); m != "" {
		if id, err := domain.ParseSpecID(m); err == nil {
			routed.SpecID = id.String()
		}
	}
	routed.Workflow = n.mentionedWorkflow(text)

	scores := map[domain.QueryKind]int{}
	for kind, keywords := range kindKeywords {
		for _, kw := range keywords {
			scores[kind] += kw.weight * len(kw.re.FindAllStringIndex(text, -1))
		}
	}
	// An explicit workflow name signals "what about running this";
	// it strengthens recommendation unless the ask is clearly about state
	// or existence.
	if routed.Workflow != "" {
		if scores[domain.QueryStatus] == 0 && scores[domain.QueryExistence] == 0 {
			scores[domain.QueryRecommendation] += 2
		} else {
			scores[domain.QueryRecommendation]++
		}
	}

	kind, winner, runnerUp := rankScores(scores)
	routed.Kind = kind
	routed.Confidence = round2(float64(winner) / float64(winner+runnerUp+1))

	if routed.Confidence < ConfidenceFloor {
		routed.Kind = domain.QueryStatus
		routed.Fallback = true
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "nlrouter").
		Str("kind", string(routed.Kind)).
		Float64("confidence", routed.Confidence).
		Bool("fallback", routed.Fallback).
		Str("spec_id", routed.SpecID).
		Str("workflow", routed.Workflow).
		Msg("query routed")

	return routed, nil
}

// mentionedWorkflow returns the first registered workflow whose name appears
// in text. Underscores match space, hyphen, or underscore, so "verify tasks"
// finds verify_tasks.
func (n *NLRouter) mentionedWorkflow(text string) string {
	for _, name := range n.registry.Names() {
		pattern := `\b` + strings.ReplaceAll(regexp.QuoteMeta(name), "_", `[ _-]`) + `\b`
		if regexp.MustCompile(pattern).MatchString(text) {
			return name
		}
	}
	return ""
}

// rankScores picks the highest-scoring kind, breaking ties in a fixed kind
// order so classification stays deterministic. A zero-score board reads as
// complex: the router understood nothing it can act on.
func rankScores(scores map[domain.QueryKind]int) (domain.QueryKind, int, int) {
	order := []domain.QueryKind{
		domain.QueryStatus,
		domain.QueryRecommendation,
		domain.QueryExistence,
		domain.QueryComplex,
	}

	best := domain.QueryComplex
	winner, runnerUp := 0, 0
	for _, kind := range order {
		s := scores[kind]
		if s > winner {
			best = kind
			runnerUp = winner
			winner = s
		} else if s > runnerUp {
			runnerUp = s
		}
	}
	if winner == 0 {
		return domain.QueryComplex, 0, 0
	}
	return best, winner, runnerUp
}

// round2 rounds to two decimals so confidences render stably.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
