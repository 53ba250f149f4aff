// Package token signs and verifies the self-contained session and second-factor
// challenge tokens issued after a PIN login.
//
// Tokens are compact JWTs. The principal id travels in "sub", the expiry in "exp",
// and the signature is the integrity tag. "pur" separates session tokens from
// challenge tokens so one can never be replayed as the other. Verification uses
// strict base64 decoding, an explicit algorithm allow-list and a required expiry.
package token
