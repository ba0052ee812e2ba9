package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricealert/backend/internal/domain"
)

// DefaultDanawaSearchURL is the danawa keyword search endpoint
const DefaultDanawaSearchURL = "https://search.danawa.com/dsearch.php"

// Product rows carry id="productItem<pcode>"; ad and recommendation blocks do not
var danawaProductID = regexp.MustCompile(`^productItem(\d+)$`)

// Danawa scrapes the danawa price comparison site
type Danawa struct {
	client    *Client
	searchURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewDanawa creates a danawa scraper. An empty searchURL uses the public site.
func NewDanawa(client *Client, searchURL string, logger *slog.Logger) *Danawa {
	if searchURL == "" {
		searchURL = DefaultDanawaSearchURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Danawa{client: client, searchURL: searchURL, logger: logger, now: time.Now}
}

// Site implements domain.Scraper
func (d *Danawa) Site() domain.Site {
	return domain.SiteDanawa
}

// Search lists real product rows from the search result page.
// The listed lowest price comes from the hidden min_price input when present.
func (d *Danawa) Search(ctx context.Context, keyword string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = domain.DefaultCandidateCount
	}
	pageURL := searchURL(d.searchURL, "query", keyword)
	doc, err := d.client.Document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	candidates := []domain.Candidate{}
	doc.Find("ul.product_list > li.prod_item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(candidates) >= limit {
			return false
		}
		m := danawaProductID.FindStringSubmatch(strings.TrimSpace(item.AttrOr("id", "")))
		if m == nil {
			return true
		}
		pcode := m[1]

		link := item.Find("p.prod_name a").First()
		if link.Length() == 0 {
			return true
		}
		productURL := absoluteURL(pageURL, link.AttrOr("href", ""))
		if productURL == "" {
			return true
		}

		c := domain.Candidate{
			Site:       domain.SiteDanawa,
			Title:      titleOf(link),
			ProductURL: productURL,
		}
		if price, ok := d.listedPrice(item, pcode); ok {
			c.Price = &price
		}
		candidates = append(candidates, c)
		return true
	})

	d.logger.Debug("scraper: danawa search", "keyword", keyword, "found", len(candidates))
	return candidates, nil
}

func (d *Danawa) listedPrice(item *goquery.Selection, pcode string) (int64, bool) {
	if v, ok := item.Find("input#min_price_" + pcode).Attr("value"); ok && strings.TrimSpace(v) != "" {
		return priceOf(v)
	}
	sect := item.Find(".prod_pricelist .price_sect, .price_sect").First()
	if sect.Length() == 0 {
		return 0, false
	}
	return priceOf(spacedText(sect))
}

// Fetch reads the lowest mall offer from a product page. The result's
// ProductURL is the mall purchase link when the page has one.
func (d *Danawa) Fetch(ctx context.Context, productURL string) (*domain.PriceResult, error) {
	doc, err := d.client.Document(ctx, productURL)
	if err != nil {
		return nil, err
	}

	title := ""
	if t := doc.Find("h3.prod_tit, h1.prod_tit, .prod_tit").First(); t.Length() > 0 {
		title = titleOf(t)
	} else if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		title = domain.CleanTitle(og, domain.DefaultTitleLength)
	}

	malls := doc.Find("ul.list__mall-price > li.list-item")
	if malls.Length() == 0 {
		return nil, fmt.Errorf("%w: no mall offers on %s", domain.ErrProductNotFound, productURL)
	}

	target := malls.FilterFunction(func(_ int, li *goquery.Selection) bool {
		return li.Find(".box__price.lowest").Length() > 0 || li.Find(".badge__lowest").Length() > 0
	}).First()
	if target.Length() == 0 {
		target = malls.First()
	}

	price, ok := priceOf(spacedText(target.Find(".box__price .text__num").First()))
	if !ok {
		return nil, fmt.Errorf("%w: no price on %s", domain.ErrFetchFailed, productURL)
	}

	buyURL := absoluteURL(productURL, target.Find("a.link__full-cover").AttrOr("href", ""))
	if buyURL == "" {
		buyURL = productURL
	}

	return &domain.PriceResult{
		Site:       domain.SiteDanawa,
		Title:      title,
		Price:      price,
		ProductURL: buyURL,
		FetchedAt:  d.now(),
	}, nil
}
