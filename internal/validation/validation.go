// Package validation holds the request schema for users and orders. It turns
// a raw JSON body into a typed, trimmed, validated model or reports every
// violated constraint.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"usersapi/internal/apperrors"
	"usersapi/internal/models"

	"github.com/go-playground/validator/v10"
)

var capitalizedRe = regexp.MustCompile(`^[A-Z]`)

// maxBcryptBytes is the longest input bcrypt accepts.
const maxBcryptBytes = 72

func isCapitalized(fl validator.FieldLevel) bool {
	return capitalizedRe.MatchString(fl.Field().String())
}

// fitsBcrypt checks the byte length, which can exceed the rune count.
func fitsBcrypt(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= maxBcryptBytes
}

// Violation is a single failed constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error carries every violation found in a payload, in field order.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	return e.First()
}

// Unwrap lets callers match the error against apperrors.ErrValidation.
func (e *Error) Unwrap() error {
	return apperrors.ErrValidation
}

// First returns the message of the first violated constraint.
func (e *Error) First() string {
	if len(e.Violations) == 0 {
		return apperrors.ErrValidation.Error()
	}
	return e.Violations[0].Message
}

// Messages returns all violation messages.
func (e *Error) Messages() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Message)
	}
	return out
}

func newError(field, msg string) *Error {
	return &Error{Violations: []Violation{{Field: field, Message: msg}}}
}

// Validator validates user and order payloads.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("capitalized", isCapitalized); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("bcryptlen", fitsBcrypt); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

// DecodeUser parses a user body, accepting both the bare object and the
// {"user": {...}} envelope.
func DecodeUser(body []byte) (*models.UserRequest, error) {
	inner, err := unwrap(body, "user")
	if err != nil {
		return nil, err
	}
	var req models.UserRequest
	if err := decode(inner, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeOrder parses an order body, accepting both the bare object and the
// {"product": {...}} envelope.
func DecodeOrder(body []byte) (*models.OrderRequest, error) {
	inner, err := unwrap(body, "product")
	if err != nil {
		return nil, err
	}
	var req models.OrderRequest
	if err := decode(inner, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// User validates a user payload and returns the typed user. isActive
// defaults to true when omitted.
func (v *Validator) User(req *models.UserRequest) (*models.User, error) {
	if req == nil {
		return nil, newError("user", "User data is required")
	}
	trimUser(req)
	if err := v.check(req); err != nil {
		return nil, err
	}

	user := &models.User{
		UserID:   *req.UserID,
		Username: *req.Username,
		Password: *req.Password,
		FullName: models.FullName{
			FirstName: *req.FullName.FirstName,
			LastName:  *req.FullName.LastName,
		},
		Age:      *req.Age,
		Email:    *req.Email,
		IsActive: true,
		Hobbies:  append([]string(nil), req.Hobbies...),
		Address: models.Address{
			Street:  *req.Address.Street,
			City:    *req.Address.City,
			Country: *req.Address.Country,
		},
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Orders != nil {
		user.Orders = make([]models.Order, 0, len(req.Orders))
		for i := range req.Orders {
			user.Orders = append(user.Orders, toOrder(&req.Orders[i]))
		}
	}
	return user, nil
}

// Order validates a single order payload.
func (v *Validator) Order(req *models.OrderRequest) (*models.Order, error) {
	if req == nil {
		return nil, newError("product", "Order data is required")
	}
	trimOrder(req)
	if err := v.check(req); err != nil {
		return nil, err
	}
	order := toOrder(req)
	return &order, nil
}

func (v *Validator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	out := &Error{Violations: make([]Violation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, Violation{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func toOrder(req *models.OrderRequest) models.Order {
	return models.Order{
		ProductName: *req.ProductName,
		Price:       *req.Price,
		Quantity:    *req.Quantity,
	}
}

func unwrap(body []byte, key string) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, newError("body", "Request body is required")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, decodeError(err)
	}
	if inner, ok := probe[key]; ok {
		trimmed := bytes.TrimSpace(inner)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed, nil
		}
	}
	return body, nil
}

func decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return newError("body", "Request body must be a JSON object")
		}
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return newError(field, fmt.Sprintf("%s must be %s", field, kindName(typeErr.Type)))
	}
	return newError("body", "Malformed JSON body")
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func trimUser(req *models.UserRequest) {
	trimPtr(req.Username)
	trimPtr(req.Email)
	if req.FullName != nil {
		trimPtr(req.FullName.FirstName)
		trimPtr(req.FullName.LastName)
	}
	if req.Address != nil {
		trimPtr(req.Address.Street)
		trimPtr(req.Address.City)
		trimPtr(req.Address.Country)
	}
	for i := range req.Hobbies {
		req.Hobbies[i] = strings.TrimSpace(req.Hobbies[i])
	}
	for i := range req.Orders {
		trimOrder(&req.Orders[i])
	}
}

func trimOrder(req *models.OrderRequest) {
	trimPtr(req.ProductName)
}
