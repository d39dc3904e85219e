package models

// FullName holds a user's given and family name.
type FullName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Address is a user's postal address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// User represents a user record. It is keyed by UserID, which is a business key
// and never the storage identifier.
//
// Password and Orders are never serialized: Password holds the bcrypt hash once
// the user has been persisted, and orders are only exposed through the orders
// endpoints.
type User struct {
	UserID   int      `json:"userId"`
	Username string   `json:"username"`
	Password string   `json:"-"`
	FullName FullName `json:"fullName"`
	Age      int      `json:"age"`
	Email    string   `json:"email"`
	IsActive bool     `json:"isActive"`
	Hobbies  []string `json:"hobbies"`
	Address  Address  `json:"address"`
	Orders   []Order  `json:"-"`
}

// FullNameRequest is the incoming fullName object.
type FullNameRequest struct {
	FirstName *string `json:"firstName" validate:"required,capitalized"`
	LastName  *string `json:"lastName" validate:"required,capitalized"`
}

// AddressRequest is the incoming address object.
type AddressRequest struct {
	Street  *string `json:"street" validate:"required,min=1"`
	City    *string `json:"city" validate:"required,min=1"`
	Country *string `json:"country" validate:"required,min=1"`
}

// UserRequest is the payload accepted by the create and update endpoints.
// Pointer fields let validation tell a missing field from a zero value.
type UserRequest struct {
	UserID   *int             `json:"userId" validate:"required,gt=0"`
	Username *string          `json:"username" validate:"required,min=1"`
	Password *string          `json:"password" validate:"required,min=8,max=20,bcryptlen"`
	FullName *FullNameRequest `json:"fullName" validate:"required"`
	Age      *int             `json:"age" validate:"required,gt=0"`
	Email    *string          `json:"email" validate:"required,email"`
	IsActive *bool            `json:"isActive"`
	Hobbies  []string         `json:"hobbies" validate:"required,min=1,dive,min=1"`
	Address  *AddressRequest  `json:"address" validate:"required"`
	Orders   []OrderRequest   `json:"orders" validate:"omitempty,dive"`
}

// UserEnvelope is the wrapped form of a user payload: {"user": {...}}.
type UserEnvelope struct {
	User *UserRequest `json:"user"`
}
