// Package walletmail provides a Go client SDK for WalletMail, a
// wallet-authenticated, end-to-end-encrypted mail service.
//
// Every wallet owns an RSA keypair. The private key never reaches the server
// in plaintext: it is wrapped under a symmetric key derived deterministically
// from a wallet signature over a fixed message, and the wrapped copy is
// escrowed server-side so keys survive across devices. Requests to the relay
// are signed with the wallet's Ed25519 key; short-lived session tokens stand
// in for fresh signatures within their validity window.
//
// Basic usage:
//
//	wallet, err := walletmail.NewLocalWallet()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := walletmail.New(wallet, walletmail.WithBaseURL(relayURL))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Run the key lifecycle to a terminal state before touching mail.
//	if err := client.EnsureKeys(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	id, err := client.Send(ctx, &walletmail.Compose{
//	    To:      recipientAddress,
//	    Subject: "Hi",
//	    Body:    "Hello Bob",
//	})
package walletmail
