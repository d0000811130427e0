// Package jwt mints and verifies the HS512 session tokens carried in the
// Authorization header, and moves verified claims through a context.
package jwt
