package walletmail

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/walletmail/client-go/internal/api"
	"github.com/walletmail/client-go/internal/crypto"
)

// Attachment size limits, enforced before any cryptographic work.
const (
	// MaxAttachmentSize is the per-file limit.
	MaxAttachmentSize = 10 << 20 // 10 MiB
	// MaxTotalAttachmentSize is the cumulative limit per message.
	MaxTotalAttachmentSize = 50 << 20 // 50 MiB
)

// File is a local file staged for attachment.
type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// FileFromPath reads a file from disk into a File, guessing nothing about
// the MIME type; set MimeType on the result if it matters.
func FileFromPath(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return &File{Name: filepath.Base(path), Content: content}, nil
}

// Attachment is the metadata for one encrypted attachment on a message.
type Attachment struct {
	FileName  string
	MimeType  string
	SizeBytes int64

	storagePath  string
	encryptedKey string
	iv           string
}

// attachmentsFromRecords converts wire records to public attachments.
func attachmentsFromRecords(records []api.AttachmentRecord) []*Attachment {
	if len(records) == 0 {
		return nil
	}
	out := make([]*Attachment, len(records))
	for i, rec := range records {
		out[i] = &Attachment{
			FileName:     rec.FileName,
			MimeType:     rec.MimeType,
			SizeBytes:    rec.SizeBytes,
			storagePath:  rec.StoragePath,
			encryptedKey: rec.EncryptedSymmetricKey,
			iv:           rec.IV,
		}
	}
	return out
}

// checkAttachmentSizes enforces both limits before any file is encrypted
// or uploaded. A violation anywhere fails the whole set up front; partial
// uploads for a message that can never send are worse than no uploads.
func checkAttachmentSizes(files []*File) error {
	var total int64
	for _, f := range files {
		size := int64(len(f.Content))
		if size > MaxAttachmentSize {
			return &SizeLimitError{FileName: f.Name, SizeBytes: size, Limit: MaxAttachmentSize}
		}
		total += size
		if total > MaxTotalAttachmentSize {
			return &SizeLimitError{FileName: f.Name, SizeBytes: size, Limit: MaxTotalAttachmentSize, Cumulative: true}
		}
	}
	return nil
}

// uploadAttachments encrypts each file under a fresh symmetric key, wraps
// the key under the recipient's public key, and uploads the ciphertext.
func (c *Client) uploadAttachments(ctx context.Context, recipientKey *rsa.PublicKey, files []*File) ([]api.AttachmentRecord, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := checkAttachmentSizes(files); err != nil {
		return nil, err
	}

	records := make([]api.AttachmentRecord, 0, len(files))
	for _, f := range files {
		key, err := crypto.GenerateSymmetricKey()
		if err != nil {
			return nil, wrapError(err)
		}
		ct, iv, err := crypto.EncryptAESGCM(f.Content, key)
		if err != nil {
			return nil, wrapError(err)
		}
		wrappedKey, err := crypto.EncryptRSA(crypto.ToBase64(key), recipientKey)
		if err != nil {
			return nil, wrapError(err)
		}

		storagePath := fmt.Sprintf("attachments/%s/%s", c.wallet.Address(), uuid.NewString())
		req := api.UploadAttachmentRequest{
			StoragePath: storagePath,
			ContentB64:  crypto.ToBase64(ct),
		}
		var resp api.UploadAttachmentResponse
		if err := c.invoke(ctx, api.ActionUploadAttachment, req, &resp); err != nil {
			return nil, err
		}
		if resp.StoragePath != "" {
			storagePath = resp.StoragePath
		}

		records = append(records, api.AttachmentRecord{
			StoragePath:           storagePath,
			EncryptedSymmetricKey: wrappedKey,
			IV:                    crypto.ToBase64(iv),
			FileName:              f.Name,
			MimeType:              f.MimeType,
			SizeBytes:             int64(len(f.Content)),
		})
	}
	return records, nil
}

// DownloadAttachment fetches and decrypts one attachment.
// Returns ErrKeyUnavailable when no private key is loaded and
// ErrDecryptionFailed when the ciphertext or wrapped key cannot be opened;
// the two have different remediations and are never conflated.
func (c *Client) DownloadAttachment(ctx context.Context, att *Attachment) ([]byte, error) {
	if att == nil {
		return nil, fmt.Errorf("attachment is required")
	}

	pair, err := c.keys.keyPair()
	if err != nil {
		return nil, ErrKeyUnavailable
	}

	var resp api.GetAttachmentResponse
	if err := c.invoke(ctx, api.ActionGetAttachment, api.GetAttachmentRequest{StoragePath: att.storagePath}, &resp); err != nil {
		return nil, err
	}

	ct, err := crypto.FromBase64(resp.ContentB64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed attachment content", ErrDecryptionFailed)
	}
	iv, err := crypto.FromBase64(att.iv)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed attachment iv", ErrDecryptionFailed)
	}

	keyB64, err := crypto.DecryptRSA(att.encryptedKey, pair.PrivateKey)
	if err != nil {
		return nil, wrapError(err)
	}
	key, err := crypto.FromBase64(keyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed attachment key", ErrDecryptionFailed)
	}

	plaintext, err := crypto.DecryptAESGCM(ct, key, iv)
	if err != nil {
		return nil, wrapError(err)
	}
	return plaintext, nil
}

// AttachmentFailure records one attachment that could not be included in a
// bulk download.
type AttachmentFailure struct {
	FileName string
	Err      error
}

// DownloadAllAttachments fetches every attachment on a message, decrypts
// them, and writes them into a single zip archive. Attachments that fail
// are reported in the returned failure list; one bad attachment does not
// sink the rest. When every attachment fails, the error of the first
// failure is returned instead of an empty archive.
func (c *Client) DownloadAllAttachments(ctx context.Context, msg *Message, w io.Writer) ([]AttachmentFailure, error) {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil, fmt.Errorf("message has no attachments")
	}

	zw := zip.NewWriter(w)
	var failures []AttachmentFailure
	written := 0
	// Duplicate file names get a numeric suffix so archive entries stay unique.
	names := make(map[string]int)

	for _, att := range msg.Attachments {
		content, err := c.DownloadAttachment(ctx, att)
		if err != nil {
			failures = append(failures, AttachmentFailure{FileName: att.FileName, Err: err})
			continue
		}

		name := att.FileName
		if n := names[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], n, ext)
		}
		names[att.FileName]++

		fw, err := zw.Create(name)
		if err != nil {
			failures = append(failures, AttachmentFailure{FileName: att.FileName, Err: err})
			continue
		}
		if _, err := fw.Write(content); err != nil {
			failures = append(failures, AttachmentFailure{FileName: att.FileName, Err: err})
			continue
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return failures, fmt.Errorf("finalize archive: %w", err)
	}
	if written == 0 {
		return failures, fmt.Errorf("all attachments failed: %w", failures[0].Err)
	}
	return failures, nil
}

// DownloadAllAttachmentsBytes is DownloadAllAttachments into memory.
func (c *Client) DownloadAllAttachmentsBytes(ctx context.Context, msg *Message) ([]byte, []AttachmentFailure, error) {
	var buf bytes.Buffer
	failures, err := c.DownloadAllAttachments(ctx, msg, &buf)
	if err != nil {
		return nil, failures, err
	}
	return buf.Bytes(), failures, nil
}
