// Package srp implements SRP-6a (RFC 5054 2048-bit group, SHA-512) for both
// the client and the server side of the login handshake.
//
// Every value crossing the API is a big-endian byte slice. Group elements
// are left-padded to the length of N before they are hashed, so both sides
// derive identical values regardless of leading zero bytes.
package srp
