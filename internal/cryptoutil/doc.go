// Package cryptoutil holds the small cryptographic primitives the API routes
// share.
//
// It supports:
//   - constant-time verification of the admin secret
//   - random opaque tokens for subscription links
//   - short SHA-256 fingerprints so tokens can be correlated in logs without
//     ever writing the token itself
package cryptoutil
