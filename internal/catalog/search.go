package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountRegex  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	groupedRegex = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

type scoredItem struct {
	Item  PricedProduct
	Score int
}

// filterByQuery keeps items matching any query token, best score first and
// cheaper first on ties. An empty query keeps sort order.
func filterByQuery(items []PricedProduct, query string) []PricedProduct {
	tokens := tokenizeQuery(strings.ToLower(strings.TrimSpace(query)))
	if len(tokens) == 0 {
		res := make([]PricedProduct, len(items))
		copy(res, items)
		sort.SliceStable(res, func(i, j int) bool {
			return res[i].SortOrder < res[j].SortOrder
		})
		return res
	}

	var scored []scoredItem
	for _, item := range items {
		if score := matchScore(item, tokens); score > 0 {
			scored = append(scored, scoredItem{Item: item, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].Item.Price.LessThan(scored[j].Item.Price)
		}
		return scored[i].Score > scored[j].Score
	})

	out := make([]PricedProduct, 0, len(scored))
	for _, sc := range scored {
		out = append(out, sc.Item)
	}
	return out
}

func matchScore(item PricedProduct, tokens []string) int {
	nameEN := strings.ToLower(item.NameEN)
	nameMY := item.NameMY
	var desc string
	if item.DescriptionEN != nil {
		desc = strings.ToLower(*item.DescriptionEN)
	}
	if item.DescriptionMY != nil {
		desc += " " + *item.DescriptionMY
	}

	score := 0
	for _, token := range tokens {
		if strings.Contains(nameEN, token) {
			score += 4
		}
		if strings.Contains(nameMY, token) {
			score += 4
		}
		if strings.Contains(desc, token) {
			score += 2
		}
	}
	return score
}

// tokenizeQuery splits on whitespace and punctuation. Mixed tokens such as
// "20000mah" also yield their digits.
func tokenizeQuery(query string) []string {
	if query == "" {
		return nil
	}
	query = strings.NewReplacer(".", " ", ",", " ").Replace(query)
	raw := strings.Fields(query)
	expanded := make([]string, 0, len(raw)*2)
	for _, token := range raw {
		expanded = append(expanded, token)
		if strings.ContainsAny(token, "0123456789") && strings.ContainsAny(token, "abcdefghijklmnopqrstuvwxyz") {
			var b strings.Builder
			for _, r := range token {
				if r >= '0' && r <= '9' {
					b.WriteRune(r)
				}
			}
			expanded = append(expanded, b.String())
		}
	}
	return expanded
}

// parseBudget reads amounts like "500", "1,500", "1,500,000", "1,5", "1.5k" or "2m".
func parseBudget(text string) (decimal.Decimal, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	loc := amountRegex.FindStringIndex(text)
	if loc == nil {
		return decimal.Zero, fmt.Errorf("max price %q has no numeric value", text)
	}
	match, rest := strings.TrimRight(text[loc[0]:loc[1]], ","), strings.TrimSpace(text[loc[1]:])
	switch {
	case !strings.Contains(match, ","):
	case groupedRegex.MatchString(match):
		match = strings.ReplaceAll(match, ",", "")
	case strings.Count(match, ",") == 1 && !strings.Contains(match, "."):
		match = strings.Replace(match, ",", ".", 1)
	default:
		return decimal.Zero, fmt.Errorf("max price %q is not a valid amount", match)
	}
	num, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse max price: %w", err)
	}
	var unit string
	if f := strings.Fields(rest); len(f) > 0 {
		unit = f[0]
	}
	switch unit {
	case "k", "thousand":
		num = num.Mul(decimal.NewFromInt(1000))
	case "m", "million":
		num = num.Mul(decimal.NewFromInt(1000000))
	}
	return num, nil
}
