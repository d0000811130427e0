// Package mail sends email. Callers depend on Mail; SMTP is the only
// transport wired today.
package mail
