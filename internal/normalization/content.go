package normalization

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"

	"github.com/velora-ai/velora-backend/internal/domain"
)

// RawRecord is one un-normalized unit of upstream content as produced by the
// catalog connector. Optional fields may be empty; Normalize tolerates all of
// them being absent.
type RawRecord struct {
	ExternalID  string
	Title       string
	BodyHTML    string
	Vendor      string
	ProductType string
	Tags        []string
	URL         string
	Price       string
}

const (
	excerptLength = 200
	maxKeywords   = 20
	minTokenLen   = 4
)

var (
	stripPolicy   = bluemonday.StrictPolicy()
	spaceRe       = regexp.MustCompile(`\s+`)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "also": {}, "been": {}, "before": {}, "best": {},
	"could": {}, "does": {}, "each": {}, "from": {}, "have": {}, "here": {},
	"into": {}, "just": {}, "like": {}, "made": {}, "more": {}, "most": {},
	"only": {}, "other": {}, "our": {}, "over": {}, "same": {}, "some": {},
	"such": {}, "than": {}, "that": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "very": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "will": {}, "with": {},
	"would": {}, "your": {},
}

// Normalize turns one raw upstream record into a canonical ContentRecord for
// the given tenant and category. It never fails: missing optional fields
// become empty strings and are dropped before joining derived fields.
func Normalize(tenant *domain.Tenant, category string, raw RawRecord, syncedAt time.Time) *domain.ContentRecord {
	body := StripHTML(raw.BodyHTML)

	rec := &domain.ContentRecord{
		TenantID:     tenant.ID,
		Category:     category,
		ExternalID:   strings.TrimSpace(raw.ExternalID),
		Title:        strings.TrimSpace(raw.Title),
		Body:         body,
		Excerpt:      excerpt(body),
		URL:          strings.TrimSpace(raw.URL),
		Vendor:       strings.TrimSpace(raw.Vendor),
		ProductType:  strings.TrimSpace(raw.ProductType),
		Price:        strings.TrimSpace(raw.Price),
		Tags:         tagsJSON(raw.Tags),
		SearchBlob:   searchBlob(raw.Title, body, raw.Vendor, raw.ProductType, raw.Tags),
		Keywords:     strings.Join(Keywords(raw.Title+" "+body), ","),
		LastSyncedAt: syncedAt,
		Active:       true,
	}
	return rec
}

// StripHTML removes markup, decodes entities and collapses whitespace.
func StripHTML(in string) string {
	if in == "" {
		return ""
	}
	out := stripPolicy.Sanitize(in)
	out = html.UnescapeString(out)
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Keywords tokenizes free text into a deduplicated, stopword-filtered list of
// lowercase terms, capped at maxKeywords. Tokens of length <= 3 are dropped.
func Keywords(text string) []string {
	lowered := strings.ToLower(text)
	lowered = punctuationRe.ReplaceAllString(lowered, " ")

	seen := map[string]struct{}{}
	out := make([]string, 0, maxKeywords)
	for _, tok := range strings.FieldsFunc(lowered, unicode.IsSpace) {
		if len([]rune(tok)) < minTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

func searchBlob(title, strippedBody, vendor, productType string, tags []string) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{title, strippedBody, vendor, productType, strings.Join(tags, " ")} {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func excerpt(strippedBody string) string {
	runes := []rune(strippedBody)
	if len(runes) <= excerptLength {
		return strippedBody
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "..."
}

func tagsJSON(tags []string) datatypes.JSON {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
