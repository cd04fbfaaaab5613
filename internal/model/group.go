package model

// GroupSource indicates which mapping layers contribute members to a group.
type GroupSource string

const (
	// GroupSourceUser means all members come from user-scoped mappings.
	GroupSourceUser GroupSource = "user"
	// GroupSourceGlobal means all members come from global mappings.
	GroupSourceGlobal GroupSource = "global"
	// GroupSourceMixed means members come from both layers.
	GroupSourceMixed GroupSource = "mixed"
)

// ProductGroup is the derived read-side view of all mappings sharing one
// canonical mapped name, for a given user. It is computed on read and never
// persisted.
type ProductGroup struct {
	Name               string
	Category           string
	Source             GroupSource
	Members            []string
	ObservedCategories []string
	TotalSpend         float64
	PurchaseCount      int
}
