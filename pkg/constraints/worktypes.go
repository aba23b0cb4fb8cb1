package constraints

// Work types classify what processing a subject needs. Every enqueue and
// every processor declares one of these.
const (
	WorkTypeNewItem     = "NEW_ITEM"
	WorkTypePriceChange = "PRICE_CHANGE"
)
