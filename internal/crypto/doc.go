// Package crypto implements the cryptographic primitives for WalletMail:
// RSA-OAEP keypairs for message content and key wrapping, AES-256-GCM for
// attachment payloads, and the password and wallet-signature key derivations
// used to protect exported and escrowed private keys.
//
// This package is internal. The public API is exposed through the root
// walletmail package.
package crypto
