package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricealert/backend/internal/domain"
)

// gmarket endpoints
const (
	DefaultGmarketSearchURL = "https://browse.gmarket.co.kr/search"
	DefaultGmarketItemURL   = "https://item.gmarket.co.kr"
)

// Gmarket scrapes the gmarket open market
type Gmarket struct {
	client    *Client
	searchURL string
	itemURL   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewGmarket creates a gmarket scraper. Empty URLs use the public site.
// Relative item links are resolved against itemURL.
func NewGmarket(client *Client, searchURL, itemURL string, logger *slog.Logger) *Gmarket {
	if searchURL == "" {
		searchURL = DefaultGmarketSearchURL
	}
	if itemURL == "" {
		itemURL = DefaultGmarketItemURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gmarket{client: client, searchURL: searchURL, itemURL: itemURL, logger: logger, now: time.Now}
}

// Site implements domain.Scraper
func (g *Gmarket) Site() domain.Site {
	return domain.SiteGmarket
}

// Search lists item cards from the search result page
func (g *Gmarket) Search(ctx context.Context, keyword string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = domain.DefaultCandidateCount
	}
	doc, err := g.client.Document(ctx, searchURL(g.searchURL, "keyword", keyword))
	if err != nil {
		return nil, err
	}

	candidates := []domain.Candidate{}
	doc.Find(".box__item-container").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(candidates) >= limit {
			return false
		}
		link := item.Find("a.link__item").First()
		if link.Length() == 0 {
			return true
		}
		productURL := absoluteURL(g.itemURL, link.AttrOr("href", ""))
		if productURL == "" {
			return true
		}

		c := domain.Candidate{
			Site:       domain.SiteGmarket,
			Title:      titleOf(link),
			ProductURL: productURL,
		}
		if price, ok := priceOf(spacedText(item.Find(".box__price-seller strong").First())); ok {
			c.Price = &price
		}
		candidates = append(candidates, c)
		return true
	})

	g.logger.Debug("scraper: gmarket search", "keyword", keyword, "found", len(candidates))
	return candidates, nil
}

// Fetch reads the title and sale price from an item page
func (g *Gmarket) Fetch(ctx context.Context, productURL string) (*domain.PriceResult, error) {
	doc, err := g.client.Document(ctx, productURL)
	if err != nil {
		return nil, err
	}

	titleSel := doc.Find(".itemtit").First()
	if titleSel.Length() == 0 {
		return nil, fmt.Errorf("%w: no item title on %s", domain.ErrProductNotFound, productURL)
	}

	price, ok := priceOf(spacedText(doc.Find(".price_innerwrap strong").First()))
	if !ok {
		return nil, fmt.Errorf("%w: no price on %s", domain.ErrFetchFailed, productURL)
	}

	return &domain.PriceResult{
		Site:       domain.SiteGmarket,
		Title:      titleOf(titleSel),
		Price:      price,
		ProductURL: productURL,
		FetchedAt:  g.now(),
	}, nil
}
