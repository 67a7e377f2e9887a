// Package relay implements the WalletMail relay server: a single
// authenticated endpoint that stores encrypted mail, key escrow records,
// and attachment blobs without ever holding a decryption capability.
//
// Every request arrives as a signed envelope on POST /api/relay. The relay
// verifies either a detached wallet signature over the exact payload bytes
// or a previously issued session token; it never re-serializes a payload
// before verifying.
package relay
