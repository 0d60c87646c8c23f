package storage

// Transaction is a row of the transactions table. Price keeps its exact
// decimal text; CreatedAt is UTC in a fixed-width layout so it sorts as text.
type Transaction struct {
	ID          string
	Description string
	Type        string
	Category    string
	Price       string
	CreatedAt   string
}
