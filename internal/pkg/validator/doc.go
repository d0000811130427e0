// Package validator checks request and domain structs against their
// `validate` tags. Failures come back as FieldErrors keyed by snake_case
// field name, ready to be echoed in an error response.
package validator
