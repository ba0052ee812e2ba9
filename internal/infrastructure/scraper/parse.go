package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricealert/backend/internal/domain"
	"golang.org/x/net/html"
)

// spacedText returns the text of sel with a space between text nodes,
// so "<b>RTX</b><i>4070</i>" reads "RTX 4070" rather than "RTX4070".
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// titleOf cleans the text of sel for display and comparison
func titleOf(sel *goquery.Selection) string {
	return domain.CleanTitle(spacedText(sel), domain.DefaultTitleLength)
}

// priceOf parses the text of sel as a price; ok is false when absent or zero
func priceOf(text string) (int64, bool) {
	price, ok := domain.ParsePrice(text)
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// absoluteURL resolves href against base. Protocol-relative links get https.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// searchURL appends the escaped keyword to endpoint under param
func searchURL(endpoint, param, keyword string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + param + "=" + url.QueryEscape(keyword)
}
