package walletmail

import (
	"context"
	"fmt"
	"time"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/crypto"
)

// Compose is an outgoing message before encryption.
type Compose struct {
	To      string
	Subject string
	Body    string

	// PaymentToken is an optional anti-spam token attached in cleartext.
	PaymentToken string

	// Attachments are files to encrypt and upload alongside the message.
	Attachments []*File
}

// Message is a decrypted message.
type Message struct {
	ID        string
	From      string
	To        string
	Subject   string
	Body      string
	CreatedAt time.Time
	Read      bool
	Starred   bool

	// Undecryptable is set when the message ciphertext could not be opened
	// with the active key, or when the sender signature does not verify.
	// Listing continues past such messages; fetching one directly returns
	// ErrDecryptionFailed or ErrInvalidSignature instead.
	Undecryptable bool

	Attachments []*Attachment
}

// Draft is a decrypted saved draft.
type Draft struct {
	ID        string
	To        string
	Subject   string
	Body      string
	UpdatedAt time.Time

	Attachments []*Attachment
}

// RecipientKey returns the escrowed public key for a wallet address.
// Returns ErrNotFound when the recipient has never provisioned keys.
func (c *Client) RecipientKey(ctx context.Context, address string) (string, error) {
	var resp api.GetPublicKeyResponse
	err := c.invoke(ctx, api.ActionGetPublicKey, api.GetPublicKeyRequest{WalletAddress: address}, &resp)
	if err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("%w: no key for %s", ErrNotFound, address)
	}
	return resp.PublicKey, nil
}

// Send encrypts and sends a message. Content is encrypted twice: under the
// recipient's key for delivery and under the sender's own key so sent mail
// stays readable. The wallet signs the recipient ciphertext so the relay
// and recipient can attribute the message.
func (c *Client) Send(ctx context.Context, msg *Compose) (string, error) {
	if msg == nil || msg.To == "" {
		return "", fmt.Errorf("recipient address is required")
	}

	pair, err := c.keys.keyPair()
	if err != nil {
		return "", err
	}

	recipientKeyB64, err := c.RecipientKey(ctx, msg.To)
	if err != nil {
		return "", err
	}
	recipientKey, err := crypto.ImportPublicKey(recipientKeyB64)
	if err != nil {
		return "", wrapError(err)
	}

	rctSubject, err := crypto.EncryptRSA(msg.Subject, recipientKey)
	if err != nil {
		return "", wrapError(err)
	}
	rctBody, err := crypto.EncryptRSA(msg.Body, recipientKey)
	if err != nil {
		return "", wrapError(err)
	}
	sctSubject, err := crypto.EncryptRSA(msg.Subject, pair.PublicKey)
	if err != nil {
		return "", wrapError(err)
	}
	sctBody, err := crypto.EncryptRSA(msg.Body, pair.PublicKey)
	if err != nil {
		return "", wrapError(err)
	}

	attachments, err := c.uploadAttachments(ctx, recipientKey, msg.Attachments)
	if err != nil {
		return "", err
	}

	// The signature covers the recipient's view of the message.
	sig, err := c.signPayload(ctx, []byte(msg.To+"\n"+rctSubject+"\n"+rctBody))
	if err != nil {
		return "", err
	}

	req := api.SendEmailRequest{
		To:                        msg.To,
		SenderEncryptedSubject:    sctSubject,
		SenderEncryptedBody:       sctBody,
		RecipientEncryptedSubject: rctSubject,
		RecipientEncryptedBody:    rctBody,
		SenderSignature:           sig,
		PaymentToken:              msg.PaymentToken,
		Attachments:               attachments,
	}

	var resp api.SendEmailResponse
	if err := c.invoke(ctx, api.ActionSendEmail, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Inbox lists received messages, decrypted with the active private key.
// Messages whose ciphertext cannot be opened are returned with
// Undecryptable set rather than aborting the whole listing.
func (c *Client) Inbox(ctx context.Context, opts ...ListOption) ([]*Message, error) {
	return c.listMessages(ctx, api.ActionGetInbox, opts...)
}

// Sent lists sent messages, decrypted from the sender's own ciphertext copy.
func (c *Client) Sent(ctx context.Context, opts ...ListOption) ([]*Message, error) {
	return c.listMessages(ctx, api.ActionGetSent, opts...)
}

func (c *Client) listMessages(ctx context.Context, action api.Action, opts ...ListOption) ([]*Message, error) {
	pair, err := c.keys.keyPair()
	if err != nil {
		return nil, err
	}

	cfg := &listConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var payload interface{}
	if action == api.ActionGetInbox {
		payload = api.GetInboxRequest{}
	} else {
		payload = api.GetSentRequest{}
	}

	var resp api.MessageListResponse
	if err := c.invoke(ctx, action, payload, &resp); err != nil {
		return nil, err
	}

	messages := make([]*Message, 0, len(resp.Messages))
	for i := range resp.Messages {
		rec := &resp.Messages[i]
		if cfg.unreadOnly && rec.Read {
			continue
		}
		if cfg.starredOnly && !rec.Starred {
			continue
		}
		messages = append(messages, c.decryptMessage(rec, pair))
		if cfg.limit > 0 && len(messages) >= cfg.limit {
			break
		}
	}
	return messages, nil
}

// GetMessage fetches and decrypts a single message by ID.
// Unlike listing, a ciphertext that cannot be opened here is an error.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	pair, err := c.keys.keyPair()
	if err != nil {
		return nil, err
	}

	var resp api.MessageResponse
	if err := c.invoke(ctx, api.ActionGetEmail, api.GetEmailRequest{ID: id}, &resp); err != nil {
		return nil, err
	}

	if err := verifySenderSignature(&resp.Message); err != nil {
		return nil, err
	}
	msg := c.decryptMessage(&resp.Message, pair)
	if msg.Undecryptable {
		return nil, ErrDecryptionFailed
	}
	return msg, nil
}

// verifySenderSignature checks the wallet signature covering the recipient's
// view of the message. The relay verifies this on send, but a recipient does
// not take the relay's word for attribution.
func verifySenderSignature(rec *api.MessageRecord) error {
	signed := rec.To + "\n" + rec.RecipientEncryptedSubject + "\n" + rec.RecipientEncryptedBody
	return VerifyWalletSignature(rec.From, []byte(signed), rec.SenderSignature)
}

// decryptMessage opens whichever ciphertext copy belongs to this wallet:
// the recipient copy for received mail, the sender copy for sent mail.
func (c *Client) decryptMessage(rec *api.MessageRecord, pair *crypto.KeyPair) *Message {
	if err := verifySenderSignature(rec); err != nil {
		return &Message{
			ID:            rec.ID,
			From:          rec.From,
			To:            rec.To,
			CreatedAt:     rec.CreatedAt,
			Read:          rec.Read,
			Starred:       rec.Starred,
			Undecryptable: true,
		}
	}

	ctSubject := rec.RecipientEncryptedSubject
	ctBody := rec.RecipientEncryptedBody
	if rec.From == c.wallet.Address() {
		ctSubject = rec.SenderEncryptedSubject
		ctBody = rec.SenderEncryptedBody
	}

	msg := &Message{
		ID:          rec.ID,
		From:        rec.From,
		To:          rec.To,
		CreatedAt:   rec.CreatedAt,
		Read:        rec.Read,
		Starred:     rec.Starred,
		Attachments: attachmentsFromRecords(rec.Attachments),
	}

	subject, err := crypto.DecryptRSA(ctSubject, pair.PrivateKey)
	if err != nil {
		msg.Undecryptable = true
		return msg
	}
	body, err := crypto.DecryptRSA(ctBody, pair.PrivateKey)
	if err != nil {
		msg.Undecryptable = true
		return msg
	}

	msg.Subject = subject
	msg.Body = body
	return msg
}

// MarkRead sets the read flag on a message.
func (c *Client) MarkRead(ctx context.Context, id string, read bool) error {
	return c.invoke(ctx, api.ActionMarkRead, api.MarkReadRequest{ID: id, Read: read}, nil)
}

// Star sets the starred flag on a message.
func (c *Client) Star(ctx context.Context, id string, starred bool) error {
	return c.invoke(ctx, api.ActionStarEmail, api.StarEmailRequest{ID: id, Starred: starred}, nil)
}

// DeleteMessage deletes a message from the caller's mailbox.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.invoke(ctx, api.ActionDeleteEmail, api.DeleteEmailRequest{ID: id}, nil)
}

// SaveDraft encrypts a draft under the caller's own key and stores it.
// Pass the ID returned by a previous save to update in place.
func (c *Client) SaveDraft(ctx context.Context, id string, msg *Compose) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("draft content is required")
	}

	pair, err := c.keys.keyPair()
	if err != nil {
		return "", err
	}

	ctSubject, err := crypto.EncryptRSA(msg.Subject, pair.PublicKey)
	if err != nil {
		return "", wrapError(err)
	}
	ctBody, err := crypto.EncryptRSA(msg.Body, pair.PublicKey)
	if err != nil {
		return "", wrapError(err)
	}

	req := api.SaveDraftRequest{Draft: api.DraftRecord{
		ID:               id,
		Owner:            c.wallet.Address(),
		To:               msg.To,
		EncryptedSubject: ctSubject,
		EncryptedBody:    ctBody,
		UpdatedAt:        c.now().UTC(),
	}}

	var resp api.SaveDraftResponse
	if err := c.invoke(ctx, api.ActionSaveDraft, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Drafts lists the caller's drafts, decrypted.
func (c *Client) Drafts(ctx context.Context) ([]*Draft, error) {
	pair, err := c.keys.keyPair()
	if err != nil {
		return nil, err
	}

	var resp api.DraftListResponse
	if err := c.invoke(ctx, api.ActionGetDrafts, api.GetDraftsRequest{}, &resp); err != nil {
		return nil, err
	}

	drafts := make([]*Draft, 0, len(resp.Drafts))
	for i := range resp.Drafts {
		rec := &resp.Drafts[i]
		subject, err := crypto.DecryptRSA(rec.EncryptedSubject, pair.PrivateKey)
		if err != nil {
			continue
		}
		body, err := crypto.DecryptRSA(rec.EncryptedBody, pair.PrivateKey)
		if err != nil {
			continue
		}
		drafts = append(drafts, &Draft{
			ID:          rec.ID,
			To:          rec.To,
			Subject:     subject,
			Body:        body,
			UpdatedAt:   rec.UpdatedAt,
			Attachments: attachmentsFromRecords(rec.Attachments),
		})
	}
	return drafts, nil
}

// DeleteDraft deletes a draft by ID.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.invoke(ctx, api.ActionDeleteDraft, api.DeleteDraftRequest{ID: id}, nil)
}
