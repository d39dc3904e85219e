package models

// Order is a product line embedded in a user. It has no identity of its own.
type Order struct {
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"` // unit price
	Quantity    int     `json:"quantity"`
}

// OrderRequest is the payload accepted by the append-order endpoint.
type OrderRequest struct {
	ProductName *string  `json:"productName" validate:"required,min=1"`
	Price       *float64 `json:"price" validate:"required,gt=0"`
	Quantity    *int     `json:"quantity" validate:"required,gte=1"`
}

// OrderEnvelope is the wrapped form of an order payload: {"product": {...}}.
type OrderEnvelope struct {
	Product *OrderRequest `json:"product"`
}

// OrdersResponse is returned by the list-orders endpoint.
type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

// TotalPriceResponse is returned by the total-price endpoint.
type TotalPriceResponse struct {
	TotalPrice float64 `json:"totalPrice"`
}
