package scanner

import "discord-indexer/utils"

// UncategorizedName is the category directory of channels outside any category.
const UncategorizedName = "Uncategorized"

// Policy decides which categories are archived.
type Policy struct {
	allowed map[string]bool
}

// NewPolicy builds a policy from an allow-list of category names. The empty
// string admits channels that have no category.
func NewPolicy(categories []string) Policy {
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[utils.NormalizeHomoglyphs(c)] = true
	}
	return Policy{allowed: allowed}
}

// Resolve returns the normalized category name used for paths and metadata
// and whether conversations in it are archived. hasCategory is false for
// channels outside any category.
func (p Policy) Resolve(categoryName string, hasCategory bool) (string, bool) {
	if !hasCategory {
		return UncategorizedName, p.allowed[UncategorizedName] || p.allowed[""]
	}
	name := utils.NormalizeHomoglyphs(categoryName)
	return name, p.allowed[name]
}
