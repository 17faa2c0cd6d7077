// Package secure implements the transport bootstrap that protects the login
// handshake: an X25519 keypair on the client, server-generated symmetric
// material sealed to that key, and a ChaCha20-Poly1305 channel for every
// message that follows.
package secure
