package models

// Product is a catalog entry. Inside the order service it is a point-in-time
// snapshot that is dropped once the order decision is made.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Stock int    `json:"stock"`
}

// CreateProductRequest represents the request to add a product to the catalog
type CreateProductRequest struct {
	ID    string `json:"id"` // generated when empty
	Name  string `json:"name" binding:"required"`
	Price *Money `json:"price" binding:"required"`
	Stock *int   `json:"stock" binding:"required"`
}

// StockChangeResponse represents the response after reserving or releasing one unit
type StockChangeResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Message   string `json:"message,omitempty"`
}
