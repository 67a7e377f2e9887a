package api

import (
	"encoding/json"
	"errors"
	"time"
)

// Action names the relay operation an envelope carries.
type Action string

// Relay actions.
const (
	ActionAuthenticate     Action = "authenticate"
	ActionSendEmail        Action = "send_email"
	ActionGetInbox         Action = "get_inbox"
	ActionGetSent          Action = "get_sent"
	ActionGetEmail         Action = "get_email"
	ActionMarkRead         Action = "mark_read"
	ActionStarEmail        Action = "star_email"
	ActionDeleteEmail      Action = "delete_email"
	ActionGetPublicKey     Action = "get_public_key"
	ActionGetEscrow        Action = "get_escrow"
	ActionUpsertEscrow     Action = "upsert_escrow"
	ActionSaveDraft        Action = "save_draft"
	ActionGetDrafts        Action = "get_drafts"
	ActionDeleteDraft      Action = "delete_draft"
	ActionUploadAttachment Action = "upload_attachment"
	ActionGetAttachment    Action = "get_attachment"
)

// Envelope is the authenticated request wrapper accepted by the relay.
// The signature covers Data exactly as transmitted; the relay never
// re-serializes the payload before verifying.
type Envelope struct {
	Action          Action          `json:"action"`
	Data            json.RawMessage `json:"data"`
	Signature       string          `json:"signature,omitempty"`
	WalletPublicKey string          `json:"walletPublicKey"`
	SessionToken    string          `json:"sessionToken,omitempty"`
}

// ErrInconsistentEscrow reports an escrow record violating the
// both-or-neither rule for its wrapped key fields.
var ErrInconsistentEscrow = errors.New("escrow record has wrapped key without iv or iv without wrapped key")

// EscrowRecord is the server-held key record for one wallet. The server
// never holds a decryption capability for EncryptedPrivateKey; only a wallet
// able to reproduce its derivation signature can unwrap it.
type EscrowRecord struct {
	WalletAddress       string    `json:"walletAddress"`
	PublicKey           string    `json:"publicKey"`
	EncryptedPrivateKey string    `json:"encryptedPrivateKey,omitempty"`
	IV                  string    `json:"iv,omitempty"`
	KeyCreatedAt        time.Time `json:"keyCreatedAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HasWrappedKey reports whether the record carries an escrowed private key.
func (r *EscrowRecord) HasWrappedKey() bool {
	return r != nil && r.EncryptedPrivateKey != "" && r.IV != ""
}

// Validate enforces the both-or-neither invariant on the wrapped key fields.
func (r *EscrowRecord) Validate() error {
	if (r.EncryptedPrivateKey == "") != (r.IV == "") {
		return ErrInconsistentEscrow
	}
	return nil
}

// AttachmentRecord is the metadata row for one encrypted attachment. The
// ciphertext blob is stored separately under StoragePath.
type AttachmentRecord struct {
	StoragePath           string `json:"storagePath"`
	EncryptedSymmetricKey string `json:"encryptedSymmetricKey"`
	IV                    string `json:"iv"`
	FileName              string `json:"fileName"`
	MimeType              string `json:"mimeType"`
	SizeBytes             int64  `json:"sizeBytes"`
}

// MessageRecord is a stored message. Content is encrypted twice: under the
// recipient's public key for delivery and under the sender's own public key
// so the sender can re-read their sent mail.
type MessageRecord struct {
	ID                        string             `json:"id"`
	From                      string             `json:"from"`
	To                        string             `json:"to"`
	SenderEncryptedSubject    string             `json:"senderEncryptedSubject"`
	SenderEncryptedBody       string             `json:"senderEncryptedBody"`
	RecipientEncryptedSubject string             `json:"recipientEncryptedSubject"`
	RecipientEncryptedBody    string             `json:"recipientEncryptedBody"`
	SenderSignature           string             `json:"senderSignature"`
	PaymentToken              string             `json:"paymentToken,omitempty"`
	CreatedAt                 time.Time          `json:"createdAt"`
	Read                      bool               `json:"read"`
	Starred                   bool               `json:"starred"`
	Attachments               []AttachmentRecord `json:"attachments,omitempty"`
}

// DraftRecord is a saved draft, encrypted under the owner's own key only.
type DraftRecord struct {
	ID               string             `json:"id"`
	Owner            string             `json:"owner"`
	To               string             `json:"to,omitempty"`
	EncryptedSubject string             `json:"encryptedSubject"`
	EncryptedBody    string             `json:"encryptedBody"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	Attachments      []AttachmentRecord `json:"attachments,omitempty"`
}

// Request payloads. One type per action; the authenticator signs exactly one
// of these shapes, never an ad hoc map.

type AuthenticateRequest struct {
	WalletAddress string    `json:"walletAddress"`
	IssuedAt      time.Time `json:"issuedAt"`
}

type SendEmailRequest struct {
	To                        string             `json:"to"`
	SenderEncryptedSubject    string             `json:"senderEncryptedSubject"`
	SenderEncryptedBody       string             `json:"senderEncryptedBody"`
	RecipientEncryptedSubject string             `json:"recipientEncryptedSubject"`
	RecipientEncryptedBody    string             `json:"recipientEncryptedBody"`
	SenderSignature           string             `json:"senderSignature"`
	PaymentToken              string             `json:"paymentToken,omitempty"`
	Attachments               []AttachmentRecord `json:"attachments,omitempty"`
}

type GetInboxRequest struct{}

type GetSentRequest struct{}

type GetEmailRequest struct {
	ID string `json:"id"`
}

type MarkReadRequest struct {
	ID   string `json:"id"`
	Read bool   `json:"read"`
}

type StarEmailRequest struct {
	ID      string `json:"id"`
	Starred bool   `json:"starred"`
}

type DeleteEmailRequest struct {
	ID string `json:"id"`
}

type GetPublicKeyRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type GetEscrowRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type UpsertEscrowRequest struct {
	Record EscrowRecord `json:"record"`
}

type SaveDraftRequest struct {
	Draft DraftRecord `json:"draft"`
}

type GetDraftsRequest struct{}

type DeleteDraftRequest struct {
	ID string `json:"id"`
}

type UploadAttachmentRequest struct {
	StoragePath string `json:"storagePath"`
	ContentB64  string `json:"content"`
}

type GetAttachmentRequest struct {
	StoragePath string `json:"storagePath"`
}

// Response payloads.

type AuthenticateResponse struct {
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type SendEmailResponse struct {
	ID string `json:"id"`
}

type MessageListResponse struct {
	Messages []MessageRecord `json:"messages"`
}

type MessageResponse struct {
	Message MessageRecord `json:"message"`
}

type GetPublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

type GetEscrowResponse struct {
	// Record is nil when the wallet has no escrow record yet.
	Record *EscrowRecord `json:"record"`
}

type SaveDraftResponse struct {
	ID string `json:"id"`
}

type DraftListResponse struct {
	Drafts []DraftRecord `json:"drafts"`
}

type UploadAttachmentResponse struct {
	StoragePath string `json:"storagePath"`
}

type GetAttachmentResponse struct {
	ContentB64 string `json:"content"`
}
