package registry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/ports"
)

var (
	countExpr       = regexp.MustCompile(`\((\d+)\)`)
	leadingCodeExpr = regexp.MustCompile(`^[A-Za-z]+`)
)

var _ ports.CategorySource = (*Client)(nil)

// HarvestCategories fetches the listing page and parses every category node.
// Only a failure to fetch the page itself is returned as an error.
func (c *Client) HarvestCategories(ctx context.Context) ([]domain.Category, error) {
	doc, err := c.fetchDocument(ctx, c.endpoint(c.cfg.CategoryPath))
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	categories := parseCategories(doc, c.logger)
	c.logger.Info("categories parsed", "count", len(categories))
	return categories, nil
}

func parseCategories(doc *goquery.Document, logger *slog.Logger) []domain.Category {
	var categories []domain.Category

	doc.Find("#codes-area .trade-div").Each(func(_ int, div *goquery.Selection) {
		category, err := parseCategory(div)
		if err != nil {
			logger.Warn("skip category node", "text", strings.TrimSpace(div.Text()), "error", err)
			return
		}
		categories = append(categories, category)
	})

	return categories
}

func parseCategory(div *goquery.Selection) (domain.Category, error) {
	text := strings.Join(strings.Fields(div.Text()), " ")

	code := strings.TrimSpace(div.Find(".trade-no").First().Text())
	if code == "" {
		code = leadingCodeExpr.FindString(text)
	}
	if code == "" {
		return domain.Category{}, fmt.Errorf("category code missing")
	}

	count, err := parseCount(text)
	if err != nil {
		return domain.Category{}, err
	}

	name, _ := div.Attr("data-trade")
	title, _ := div.Attr("title")

	return domain.Category{
		Code:          code,
		Name:          strings.TrimSpace(name),
		Title:         strings.TrimSpace(title),
		StandardCount: count,
		DataTrade:     strings.TrimSpace(name),
	}, nil
}

// parseCount reads the "(<digits>)" suffix; absence means zero.
func parseCount(text string) (int, error) {
	match := countExpr.FindStringSubmatch(text)
	if match == nil {
		return 0, nil
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", match[1], err)
	}
	return count, nil
}
