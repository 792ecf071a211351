package product

import "time"

// Category is the fixed set of storefront departments.
type Category string

const (
	CategoryClothing Category = "clothing"
	CategoryShoes    Category = "shoes"
	CategoryJewelry  Category = "jewelry"
	CategoryHandbags Category = "handbags"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryClothing, CategoryShoes, CategoryJewelry, CategoryHandbags:
		return true
	}
	return false
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	// We store price as a string to avoid rounding errors (NUMERIC in Postgres)
	Price         string    `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	// search query applied
	Q string `json:"q,omitempty"`
	// category filter applied
	Category string `json:"category,omitempty"`
	// limit applied
	Limit int `json:"limit"`
	// offset applied
	Offset int `json:"offset"`
	// items found
	Items []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Silk Evening Dress"`
	Description string `json:"description" example:"Hand-stitched, midnight blue"`
	Category    string `json:"category"    example:"clothing"`
	Price       string `json:"price"       example:"199.90"`
	Stock       int    `json:"stock"       example:"10"`
	ImageURL    string `json:"image_url"   example:"https://cdn.example.com/dress.jpg"`
}

// UpdateProductRequest payload of partial update.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
}
