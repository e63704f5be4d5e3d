package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/velora-ai/velora-backend/internal/domain"
	"github.com/velora-ai/velora-backend/internal/normalization"
	"github.com/velora-ai/velora-backend/internal/platform/envutil"
	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

// ErrCategoryForbidden signals that the tenant's credential scope does not
// cover a category. The sync pipeline skips the category instead of failing
// the whole job.
var ErrCategoryForbidden = errors.New("shopify: category not covered by credential scope")

const (
	apiVersion = "2024-07"
	pageLimit  = 250
)

// Client pages through the Shopify Admin REST API. The page_info cursor is
// opaque and lives only in memory for the duration of one sync run.
type Client struct {
	log        *logger.Logger
	httpClient *http.Client

	// BaseURL overrides the https://{storeDomain} scheme+host when non-empty.
	// Used by tests; production leaves it unset.
	BaseURL string
}

func NewClient(log *logger.Logger) *Client {
	timeout := envutil.Duration("SHOPIFY_HTTP_TIMEOUT", 30*time.Second)
	return &Client{
		log:        log.With("client", "ShopifyClient"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchCategory pages through one content category, invoking onPage for every
// page of raw records until the upstream cursor reports no next page.
func (c *Client) FetchCategory(ctx context.Context, storeDomain string, accessToken string, category string, onPage func(records []normalization.RawRecord) error) error {
	resource, ok := categoryResource(category)
	if !ok {
		return fmt.Errorf("shopify: unknown category %q", category)
	}

	pageInfo := ""
	for {
		records, next, err := c.fetchPage(ctx, storeDomain, accessToken, resource, category, pageInfo)
		if err != nil {
			return err
		}
		if len(records) > 0 {
			if err := onPage(records); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		pageInfo = next
	}
}

func categoryResource(category string) (string, bool) {
	switch category {
	case domain.CategoryItem:
		return "products", true
	case domain.CategoryArticle:
		return "articles", true
	case domain.CategoryCollection:
		return "custom_collections", true
	case domain.CategoryPage:
		return "pages", true
	default:
		return "", false
	}
}

func (c *Client) fetchPage(ctx context.Context, storeDomain, accessToken, resource, category, pageInfo string) ([]normalization.RawRecord, string, error) {
	base := c.BaseURL
	if base == "" {
		base = "https://" + storeDomain
	}
	url := fmt.Sprintf("%s/admin/api/%s/%s.json?limit=%d", base, apiVersion, resource, pageLimit)
	if pageInfo != "" {
		url += "&page_info=" + pageInfo
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: %s (%d)", ErrCategoryForbidden, resource, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, "", fmt.Errorf("shopify: %s page fetch failed: http %d: %s", resource, resp.StatusCode, truncateBody(raw))
	}

	records, err := decodePage(storeDomain, resource, category, raw)
	if err != nil {
		return nil, "", err
	}
	return records, nextPageInfo(resp.Header.Get("Link")), nil
}

var nextLinkRe = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

func nextPageInfo(linkHeader string) string {
	m := nextLinkRe.FindStringSubmatch(linkHeader)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

type productPayload struct {
	Products []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		BodyHTML    string `json:"body_html"`
		Vendor      string `json:"vendor"`
		ProductType string `json:"product_type"`
		Tags        string `json:"tags"`
		Handle      string `json:"handle"`
		Variants    []struct {
			Price string `json:"price"`
		} `json:"variants"`
	} `json:"products"`
}

type articlePayload struct {
	Articles []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		BodyHTML string `json:"body_html"`
		Tags     string `json:"tags"`
		Handle   string `json:"handle"`
		BlogID   int64  `json:"blog_id"`
	} `json:"articles"`
}

type collectionPayload struct {
	CustomCollections []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		BodyHTML string `json:"body_html"`
		Handle   string `json:"handle"`
	} `json:"custom_collections"`
}

type pagePayload struct {
	Pages []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		BodyHTML string `json:"body_html"`
		Handle   string `json:"handle"`
	} `json:"pages"`
}

func decodePage(storeDomain, resource, category string, raw []byte) ([]normalization.RawRecord, error) {
	switch resource {
	case "products":
		var p productPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("shopify: decode products: %w", err)
		}
		out := make([]normalization.RawRecord, 0, len(p.Products))
		for _, item := range p.Products {
			price := ""
			if len(item.Variants) > 0 {
				price = item.Variants[0].Price
			}
			out = append(out, normalization.RawRecord{
				ExternalID:  strconv.FormatInt(item.ID, 10),
				Title:       item.Title,
				BodyHTML:    item.BodyHTML,
				Vendor:      item.Vendor,
				ProductType: item.ProductType,
				Tags:        splitTags(item.Tags),
				URL:         storefrontURL(storeDomain, "products", item.Handle),
				Price:       price,
			})
		}
		return out, nil
	case "articles":
		var p articlePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("shopify: decode articles: %w", err)
		}
		out := make([]normalization.RawRecord, 0, len(p.Articles))
		for _, item := range p.Articles {
			out = append(out, normalization.RawRecord{
				ExternalID: strconv.FormatInt(item.ID, 10),
				Title:      item.Title,
				BodyHTML:   item.BodyHTML,
				Tags:       splitTags(item.Tags),
				URL:        storefrontURL(storeDomain, "blogs/news", item.Handle),
			})
		}
		return out, nil
	case "custom_collections":
		var p collectionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("shopify: decode collections: %w", err)
		}
		out := make([]normalization.RawRecord, 0, len(p.CustomCollections))
		for _, item := range p.CustomCollections {
			out = append(out, normalization.RawRecord{
				ExternalID: strconv.FormatInt(item.ID, 10),
				Title:      item.Title,
				BodyHTML:   item.BodyHTML,
				URL:        storefrontURL(storeDomain, "collections", item.Handle),
			})
		}
		return out, nil
	case "pages":
		var p pagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("shopify: decode pages: %w", err)
		}
		out := make([]normalization.RawRecord, 0, len(p.Pages))
		for _, item := range p.Pages {
			out = append(out, normalization.RawRecord{
				ExternalID: strconv.FormatInt(item.ID, 10),
				Title:      item.Title,
				BodyHTML:   item.BodyHTML,
				URL:        storefrontURL(storeDomain, "pages", item.Handle),
			})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("shopify: unknown resource %q", resource)
	}
}

func splitTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func storefrontURL(storeDomain, prefix, handle string) string {
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/%s/%s", storeDomain, prefix, handle)
}

func truncateBody(raw []byte) string {
	const max = 256
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
