package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
	"github.com/velora-ai/velora-backend/internal/repos"
)

// ScoredQuery is a preprocessed free-text query: corrections applied and
// tokenized into terms of length > 2.
type ScoredQuery struct {
	Corrected string
	Tokens    []string
}

// Scorer ranks one record against a query. It is the replaceable strategy
// behind the scored retrieval mode; RuleScorer is the default hand-tuned
// implementation.
type Scorer interface {
	Score(record *domain.ContentRecord, query ScoredQuery) int
}

type RankedRecord struct {
	Record *domain.ContentRecord `json:"record"`
	Score  int                   `json:"score"`
}

type RetrievalService interface {
	// Filter is the low-latency containment mode: substring match, recency
	// order.
	Filter(ctx context.Context, tenantID uuid.UUID, query string, categories []string, limit, offset int) ([]*domain.ContentRecord, int64, error)
	// Ranked is the relevance-scored mode. Records scoring zero are excluded.
	Ranked(ctx context.Context, tenantID uuid.UUID, query string, categories []string, limit int) ([]RankedRecord, error)
	// Prepare exposes query preprocessing for callers that log or echo the
	// corrected query.
	Prepare(query string) ScoredQuery
}

type retrievalService struct {
	log     *logger.Logger
	content repos.ContentRepo
	scorer  Scorer
	rules   RetrievalRules
}

func NewRetrievalService(baseLog *logger.Logger, content repos.ContentRepo, rules RetrievalRules, scorer Scorer) RetrievalService {
	if scorer == nil {
		scorer = NewRuleScorer(rules)
	}
	return &retrievalService{
		log:     baseLog.With("service", "RetrievalService"),
		content: content,
		scorer:  scorer,
		rules:   rules,
	}
}

func (s *retrievalService) Filter(ctx context.Context, tenantID uuid.UUID, query string, categories []string, limit, offset int) ([]*domain.ContentRecord, int64, error) {
	return s.content.Search(ctx, nil, tenantID, repos.ContentFilter{
		Query:      query,
		Categories: categories,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *retrievalService) Ranked(ctx context.Context, tenantID uuid.UUID, query string, categories []string, limit int) ([]RankedRecord, error) {
	sq := s.Prepare(query)
	if sq.Corrected == "" {
		return nil, nil
	}

	candidates, err := s.content.ListActive(ctx, nil, tenantID, categories)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedRecord, 0, len(candidates))
	for _, rec := range candidates {
		score := s.scorer.Score(rec, sq)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, RankedRecord{Record: rec, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Record.LastSyncedAt.After(ranked[j].Record.LastSyncedAt)
	})

	if limit <= 0 {
		limit = 10
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *retrievalService) Prepare(query string) ScoredQuery {
	lowered := strings.ToLower(strings.TrimSpace(query))
	if lowered == "" {
		return ScoredQuery{}
	}

	words := strings.Fields(lowered)
	corrected := make([]string, 0, len(words))
	for _, w := range words {
		if repl, ok := s.rules.Corrections[w]; ok {
			corrected = append(corrected, repl)
			continue
		}
		corrected = append(corrected, w)
	}
	full := strings.Join(corrected, " ")

	tokens := make([]string, 0, len(corrected))
	for _, w := range strings.Fields(full) {
		if len([]rune(w)) > 2 {
			tokens = append(tokens, w)
		}
	}
	return ScoredQuery{Corrected: full, Tokens: tokens}
}

// RuleScorer is the default hand-tuned additive scorer. Field weights favor
// the title, then the curated keyword list, then the search blob, then the
// raw body; a bonus rewards dietary+product concept pairs appearing together.
type RuleScorer struct {
	rules RetrievalRules
}

func NewRuleScorer(rules RetrievalRules) *RuleScorer {
	return &RuleScorer{rules: rules}
}

const (
	scoreFullQueryInTitle  = 100
	scoreAllTokensInTitle  = 80
	scoreAllTokensAnywhere = 60
	scoreTokenInTitle      = 15
	scoreTokenInKeywords   = 10
	scoreTokenInBlob       = 6
	scoreTokenInBody       = 3
	scoreConceptsInTitle   = 50
	scoreConceptsSplit     = 30
)

func (rs *RuleScorer) Score(record *domain.ContentRecord, query ScoredQuery) int {
	if record == nil || len(query.Tokens) == 0 {
		return 0
	}

	title := strings.ToLower(record.Title)
	keywords := strings.ToLower(record.Keywords)
	blob := record.SearchBlob
	body := strings.ToLower(record.Body)
	combined := title + " " + keywords + " " + blob

	score := 0
	if query.Corrected != "" && strings.Contains(title, query.Corrected) {
		score += scoreFullQueryInTitle
	}

	allInTitle := true
	allAnywhere := true
	for _, tok := range query.Tokens {
		inTitle := strings.Contains(title, tok)
		if inTitle {
			score += scoreTokenInTitle
		} else {
			allInTitle = false
		}
		if strings.Contains(keywords, tok) {
			score += scoreTokenInKeywords
		}
		if strings.Contains(blob, tok) {
			score += scoreTokenInBlob
		}
		if strings.Contains(body, tok) {
			score += scoreTokenInBody
		}
		if !inTitle && !strings.Contains(combined, tok) {
			allAnywhere = false
		}
	}
	if allInTitle {
		score += scoreAllTokensInTitle
	}
	if allAnywhere {
		score += scoreAllTokensAnywhere
	}

	score += rs.conceptBonus(title, body, query.Tokens)

	// A record with no token overlap at all scores zero regardless of the
	// aggregate bonuses above.
	if !anyTokenPresent(query.Tokens, combined, body) {
		return 0
	}
	return score
}

// conceptBonus rewards queries that pair two meaningfully co-occurring
// concepts (a dietary qualifier with a product term) when the record carries
// both: strongest when both land in the title, weaker when split across
// title and body.
func (rs *RuleScorer) conceptBonus(title, body string, tokens []string) int {
	matched := map[string]string{}
	for group, terms := range rs.rules.ConceptGroups {
		for _, tok := range tokens {
			for _, term := range terms {
				if tok == term || strings.Contains(tok, term) {
					matched[group] = term
				}
			}
		}
	}
	if len(matched) < 2 {
		return 0
	}

	allInTitle := true
	allPresent := true
	for _, term := range matched {
		inTitle := strings.Contains(title, term)
		if !inTitle {
			allInTitle = false
			if !strings.Contains(body, term) {
				allPresent = false
			}
		}
	}
	switch {
	case allInTitle:
		return scoreConceptsInTitle
	case allPresent:
		return scoreConceptsSplit
	default:
		return 0
	}
}

func anyTokenPresent(tokens []string, combined, body string) bool {
	for _, tok := range tokens {
		if strings.Contains(combined, tok) || strings.Contains(body, tok) {
			return true
		}
	}
	return false
}
