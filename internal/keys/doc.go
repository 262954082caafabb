// Package keys implements reader session-key derivation.
//
// The derivation is pure and stateless: a deployment master key comes from
// the shared service secret via scrypt once at startup, and each pairing
// produces a session key by encrypting the reader's serial and key cycle
// under that master key with a timestamp-derived IV. All persistence and
// cycle management live in the pairing package.
package keys
