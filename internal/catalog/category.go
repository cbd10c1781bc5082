package catalog

import (
	"strings"

	"github.com/dmlat/InfoCoffee-sub001/internal/models"
)

// CategoryRule assigns Category to names accepted by Match.
type CategoryRule struct {
	Match    func(lowerName string) bool
	Category models.Category
}

func containsAny(subs ...string) func(string) bool {
	return func(name string) bool {
		for _, s := range subs {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// DefaultCategory is used when no rule matches.
const DefaultCategory = models.CategoryCoffee

// CategoryRules are evaluated top to bottom; the first match wins, so "раф
// чайный" is a raf and not a tea.
var CategoryRules = []CategoryRule{
	{Match: containsAny("бесплат", "free", "вода", "water"), Category: models.CategoryFree},
	{Match: containsAny("раф", "raf"), Category: models.CategoryRaf},
	{Match: containsAny("чай", "tea", "матча", "matcha"), Category: models.CategoryTea},
	{Match: containsAny("лимонад", "lemonade"), Category: models.CategoryLemonade},
}

// Classify returns the category of a product name.
func Classify(name string) models.Category {
	lower := strings.ToLower(name)
	for _, rule := range CategoryRules {
		if rule.Match(lower) {
			return rule.Category
		}
	}
	return DefaultCategory
}
