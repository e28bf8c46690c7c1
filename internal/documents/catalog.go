package documents

import (
	"strings"

	"familyvault/internal/dom"
)

// Category is one entry of the fixed document catalog.
type Category struct {
	ID    string
	Label string
}

// Categories is the catalog offered by every category selector.
var Categories = []Category{
	{ID: "identity", Label: "Identity Documents"},
	{ID: "education", Label: "Education"},
	{ID: "employment", Label: "Employment"},
	{ID: "financial", Label: "Financial"},
	{ID: "medical", Label: "Medical"},
	{ID: "legal", Label: "Legal"},
	{ID: "other", Label: "Other"},
}

// First options of the two kinds of category selector.
const (
	AllCategoriesLabel  = "All Categories"
	SelectCategoryLabel = "Select Category"
)

// Statuses offered by the status filter.
var Statuses = []dom.Option{
	{Value: "", Label: "All Statuses"},
	{Value: "pending", Label: "Pending"},
	{Value: "verified", Label: "Verified"},
	{Value: "rejected", Label: "Rejected"},
}

func categoryOptions(first string) []dom.Option {
	opts := make([]dom.Option, 0, len(Categories)+1)
	opts = append(opts, dom.Option{Value: "", Label: first})
	for _, c := range Categories {
		opts = append(opts, dom.Option{Value: c.ID, Label: c.Label})
	}
	return opts
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
