// Package validation provides pure validation functions for API handlers.
//
// Functions return the offending field name and a message, or two empty
// strings when the input is acceptable. They do no I/O.
//
// # Functions
//
//   - ValidateProductFields: required fields and price format for a product
//   - ValidateSignupFields: email, password and name for a new account
//   - ValidateLoginFields: presence of email and password
//
// # Usage
//
//	if field, msg := validation.ValidateProductFields(name, price); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
