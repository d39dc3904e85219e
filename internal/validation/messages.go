package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// messages maps "<field>.<tag>" to the text reported to clients.
var messages = map[string]string{
	"userId.required":       "UserId is required",
	"userId.gt":             "UserId must be a positive number",
	"username.required":     "Username is required",
	"username.min":          "Username is required",
	"password.required":     "Password is required",
	"password.min":          "Password must be at least 8 characters",
	"password.max":          "Password should not be longer than 20 characters",
	"password.bcryptlen":    "Password is too long",
	"fullName.required":     "Full name is required",
	"firstName.required":    "First name is required",
	"firstName.capitalized": "First Name must start with a capital letter",
	"lastName.required":     "Last name is required",
	"lastName.capitalized":  "Last Name must start with a capital letter",
	"age.required":          "Age is required",
	"age.gt":                "Age should be greater than 0",
	"email.required":        "Email is required",
	"email.email":           "This is not a valid email address",
	"hobbies.required":      "Hobbies are required",
	"hobbies.min":           "Hobbies should contain at least one hobby",
	"hobby.min":             "Hobby should at least 1 character long",
	"address.required":      "Address is required",
	"street.required":       "Street name is required",
	"street.min":            "Street name is required",
	"city.required":         "City name is required",
	"city.min":              "City name is required",
	"country.required":      "Country name is required",
	"country.min":           "Country name is required",
	"productName.required":  "Product name is required",
	"productName.min":       "Product name is required",
	"price.required":        "Price is required",
	"price.gt":              "Price should be greater than 0",
	"quantity.required":     "Quantity is required",
	"quantity.gte":          "Quantity should be at least 1",
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		// hobbies[2] is a single hobby
		if field[:i] == "hobbies" {
			field = "hobby"
		} else {
			field = field[:i]
		}
	}
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed on the '%s=%s' rule", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
}
