// Package api implements the HTTP transport to the WalletMail relay.
//
// Every call goes through a single relay endpoint as a signed envelope:
// the action name, the raw JSON request payload, a base58 detached signature
// over those exact payload bytes, the caller's wallet address, and an
// optional session token. The request payload types form a closed set; the
// relay and the client share them through this package.
package api
