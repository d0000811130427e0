// Package sealer encrypts small secrets at rest (TOTP seeds, stored passwords)
// with AES-256-GCM.
//
// Every ciphertext is bound to a Scope through the GCM additional data, so a
// value sealed for one user or purpose cannot be opened for another. Keys are
// versioned: the version is written in the ciphertext header and old versions
// stay readable after a rotation.
package sealer
