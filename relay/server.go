package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walletmail/client-go/internal/api"
)

const (
	// maxEnvelopeBytes bounds a relay request body. Sized for a 10 MiB
	// attachment after AES-GCM overhead and base64 expansion, plus envelope
	// framing.
	maxEnvelopeBytes = 15 << 20

	// maxAttachmentBytes is the decoded ciphertext ceiling for one upload.
	maxAttachmentBytes = (10 << 20) + 64

	// authWindow is how far an authenticate challenge's IssuedAt may drift
	// from server time. Outside it the signature is treated as a replay.
	authWindow = 5 * time.Minute
)

// Server is the relay HTTP server.
type Server struct {
	store   Store
	blobs   BlobStore
	tokens  *TokenIssuer
	limiter *walletLimiter
	metrics *metrics
	now     func() time.Time
	router  chi.Router
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithStore sets the metadata store. Default: in-memory.
func WithStore(s Store) ServerOption {
	return func(srv *Server) { srv.store = s }
}

// WithBlobStore sets the attachment blob store. Default: in-memory.
func WithBlobStore(b BlobStore) ServerOption {
	return func(srv *Server) { srv.blobs = b }
}

// WithRateLimit sets the per-wallet request rate. Default: 10/s, burst 30.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(srv *Server) { srv.limiter = newWalletLimiter(perSecond, burst) }
}

// NewServer creates a relay server. secret keys the session token HMAC and
// must be stable across restarts for issued tokens to survive them.
func NewServer(secret []byte, opts ...ServerOption) (*Server, error) {
	tokens, err := NewTokenIssuer(secret)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		store:   NewMemoryStore(),
		blobs:   NewMemoryBlobStore(),
		tokens:  tokens,
		limiter: newWalletLimiter(10, 30),
		metrics: newMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/api/relay", srv.handleRelay)
	r.Get("/healthz", srv.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(srv.metrics.registry, promhttp.HandlerOpts{}))
	srv.router = r

	return srv, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// relayError is an error with an HTTP status.
type relayError struct {
	status  int
	message string
}

func (e *relayError) Error() string { return e.message }

func httpError(status int, format string, args ...interface{}) *relayError {
	return &relayError{status: status, message: fmt.Sprintf(format, args...)}
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)

	var env api.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.writeError(w, string(env.Action), httpError(http.StatusBadRequest, "malformed envelope"))
		return
	}

	start := s.now()
	result, err := s.dispatch(&env)
	s.metrics.requestDuration.WithLabelValues(string(env.Action)).Observe(s.now().Sub(start).Seconds())

	if err != nil {
		s.writeError(w, string(env.Action), err)
		return
	}

	s.metrics.requestsTotal.WithLabelValues(string(env.Action), "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	var relayErr *relayError
	if errors.As(err, &relayErr) {
		status = relayErr.status
		message = relayErr.message
	}

	s.metrics.requestsTotal.WithLabelValues(action, "error").Inc()
	if status == http.StatusUnauthorized {
		s.metrics.authFailures.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// authenticate establishes the caller's wallet. An envelope carries either a
// detached signature over the exact Data bytes as transmitted, or a session
// token from a previous authenticate call. The payload is never
// re-serialized before verification.
func (s *Server) authenticate(env *api.Envelope) (string, error) {
	if env.WalletPublicKey == "" {
		return "", httpError(http.StatusUnauthorized, "missing wallet public key")
	}

	if env.Signature != "" {
		if err := verifySignature(env.WalletPublicKey, env.Data, env.Signature); err != nil {
			return "", httpError(http.StatusUnauthorized, "invalid signature")
		}
		return env.WalletPublicKey, nil
	}

	if env.SessionToken != "" {
		wallet, err := s.tokens.Verify(env.SessionToken)
		if err != nil {
			return "", httpError(http.StatusUnauthorized, "invalid session token")
		}
		if wallet != env.WalletPublicKey {
			return "", httpError(http.StatusUnauthorized, "token wallet mismatch")
		}
		return wallet, nil
	}

	return "", httpError(http.StatusUnauthorized, "no credentials")
}

func (s *Server) dispatch(env *api.Envelope) (interface{}, error) {
	wallet, err := s.authenticate(env)
	if err != nil {
		return nil, err
	}

	if !s.limiter.allow(wallet) {
		s.metrics.rateLimited.Inc()
		return nil, httpError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	switch env.Action {
	case api.ActionAuthenticate:
		return s.handleAuthenticate(env, wallet)
	case api.ActionSendEmail:
		return s.handleSendEmail(env, wallet)
	case api.ActionGetInbox:
		messages, err := s.store.ListInbox(wallet)
		if err != nil {
			return nil, err
		}
		return api.MessageListResponse{Messages: messages}, nil
	case api.ActionGetSent:
		messages, err := s.store.ListSent(wallet)
		if err != nil {
			return nil, err
		}
		return api.MessageListResponse{Messages: messages}, nil
	case api.ActionGetEmail:
		return s.handleGetEmail(env, wallet)
	case api.ActionMarkRead:
		return s.handleMarkRead(env, wallet)
	case api.ActionStarEmail:
		return s.handleStarEmail(env, wallet)
	case api.ActionDeleteEmail:
		return s.handleDeleteEmail(env, wallet)
	case api.ActionGetPublicKey:
		return s.handleGetPublicKey(env)
	case api.ActionGetEscrow:
		return s.handleGetEscrow(env, wallet)
	case api.ActionUpsertEscrow:
		return s.handleUpsertEscrow(env, wallet)
	case api.ActionSaveDraft:
		return s.handleSaveDraft(env, wallet)
	case api.ActionGetDrafts:
		drafts, err := s.store.ListDrafts(wallet)
		if err != nil {
			return nil, err
		}
		return api.DraftListResponse{Drafts: drafts}, nil
	case api.ActionDeleteDraft:
		return s.handleDeleteDraft(env, wallet)
	case api.ActionUploadAttachment:
		return s.handleUploadAttachment(env, wallet)
	case api.ActionGetAttachment:
		return s.handleGetAttachment(env)
	default:
		return nil, httpError(http.StatusBadRequest, "unknown action %q", env.Action)
	}
}

func decodeData(env *api.Envelope, dst interface{}) error {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return httpError(http.StatusBadRequest, "malformed %s payload", env.Action)
	}
	return nil
}

// handleAuthenticate mints a session token. The challenge must be signed
// (tokens cannot mint tokens) and its timestamp must be within authWindow
// of server time.
func (s *Server) handleAuthenticate(env *api.Envelope, wallet string) (interface{}, error) {
	if env.Signature == "" {
		return nil, httpError(http.StatusUnauthorized, "authenticate requires a signature")
	}

	var req api.AuthenticateRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	if req.WalletAddress != wallet {
		return nil, httpError(http.StatusUnauthorized, "challenge wallet mismatch")
	}
	if drift := s.now().Sub(req.IssuedAt); drift > authWindow || drift < -authWindow {
		return nil, httpError(http.StatusUnauthorized, "stale authentication challenge")
	}

	token, expiresAt := s.tokens.Issue(wallet)
	return api.AuthenticateResponse{SessionToken: token, ExpiresAt: expiresAt}, nil
}

func (s *Server) handleSendEmail(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.SendEmailRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	if req.To == "" {
		return nil, httpError(http.StatusBadRequest, "recipient is required")
	}
	if req.SenderSignature == "" {
		return nil, httpError(http.StatusBadRequest, "sender signature is required")
	}
	// The signature must cover the recipient's view of the message and
	// verify against the authenticated wallet. Tokens authenticate the
	// envelope, not the attribution; without this check a token-holding
	// sender could attach an arbitrary senderSignature.
	signed := []byte(req.To + "\n" + req.RecipientEncryptedSubject + "\n" + req.RecipientEncryptedBody)
	if err := verifySignature(wallet, signed, req.SenderSignature); err != nil {
		return nil, httpError(http.StatusUnauthorized, "sender signature does not verify")
	}
	// The recipient must have provisioned keys; otherwise the ciphertext
	// could not have been produced for them and the message is undeliverable.
	if _, err := s.store.GetEscrow(req.To); err != nil {
		return nil, httpError(http.StatusNotFound, "recipient has no key")
	}

	msg := api.MessageRecord{
		ID:                        uuid.NewString(),
		From:                      wallet,
		To:                        req.To,
		SenderEncryptedSubject:    req.SenderEncryptedSubject,
		SenderEncryptedBody:       req.SenderEncryptedBody,
		RecipientEncryptedSubject: req.RecipientEncryptedSubject,
		RecipientEncryptedBody:    req.RecipientEncryptedBody,
		SenderSignature:           req.SenderSignature,
		PaymentToken:              req.PaymentToken,
		CreatedAt:                 s.now().UTC(),
		Attachments:               req.Attachments,
	}
	if err := s.store.SaveMessage(&msg); err != nil {
		return nil, err
	}
	return api.SendEmailResponse{ID: msg.ID}, nil
}

// messageParty loads a message and checks the caller is its sender or
// recipient. A message the caller is no party to reads as 404, not 403, so
// message IDs cannot be probed for existence.
func (s *Server) messageParty(id, wallet string) (*api.MessageRecord, error) {
	msg, err := s.store.GetMessage(id)
	if err != nil {
		return nil, httpError(http.StatusNotFound, "message not found")
	}
	if msg.From != wallet && msg.To != wallet {
		return nil, httpError(http.StatusNotFound, "message not found")
	}
	return msg, nil
}

func (s *Server) handleGetEmail(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.GetEmailRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	msg, err := s.messageParty(req.ID, wallet)
	if err != nil {
		return nil, err
	}
	return api.MessageResponse{Message: *msg}, nil
}

func (s *Server) handleMarkRead(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.MarkReadRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	msg, err := s.messageParty(req.ID, wallet)
	if err != nil {
		return nil, err
	}
	if msg.To != wallet {
		return nil, httpError(http.StatusForbidden, "only the recipient can mark read")
	}
	if err := s.store.SetRead(req.ID, req.Read); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleStarEmail(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.StarEmailRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	msg, err := s.messageParty(req.ID, wallet)
	if err != nil {
		return nil, err
	}
	if msg.To != wallet {
		return nil, httpError(http.StatusForbidden, "only the recipient can star")
	}
	if err := s.store.SetStarred(req.ID, req.Starred); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleDeleteEmail(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.DeleteEmailRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	if _, err := s.messageParty(req.ID, wallet); err != nil {
		return nil, err
	}
	if err := s.store.DeleteMessage(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetPublicKey(env *api.Envelope) (interface{}, error) {
	var req api.GetPublicKeyRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	record, err := s.store.GetEscrow(req.WalletAddress)
	if err != nil {
		return nil, httpError(http.StatusNotFound, "no key for wallet")
	}
	return api.GetPublicKeyResponse{PublicKey: record.PublicKey}, nil
}

// handleGetEscrow returns the caller's own escrow record. The wrapped
// private key is never served to anyone else, public key lookups go
// through get_public_key instead.
func (s *Server) handleGetEscrow(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.GetEscrowRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	if req.WalletAddress != wallet {
		return nil, httpError(http.StatusForbidden, "escrow records are private")
	}
	record, err := s.store.GetEscrow(wallet)
	if err != nil {
		// No record yet is a normal first-run answer, not an error.
		return api.GetEscrowResponse{Record: nil}, nil
	}
	return api.GetEscrowResponse{Record: record}, nil
}

// handleUpsertEscrow replaces the wallet's key record. A session token does
// not suffice here: swapping the escrowed key redirects all future mail, so
// the envelope must carry a fresh wallet signature.
func (s *Server) handleUpsertEscrow(env *api.Envelope, wallet string) (interface{}, error) {
	if env.Signature == "" {
		return nil, httpError(http.StatusUnauthorized, "upsert_escrow requires a signature")
	}
	var req api.UpsertEscrowRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	if req.Record.WalletAddress != wallet {
		return nil, httpError(http.StatusForbidden, "cannot escrow for another wallet")
	}
	if req.Record.PublicKey == "" {
		return nil, httpError(http.StatusBadRequest, "escrow record requires a public key")
	}
	record := req.Record
	record.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertEscrow(&record); err != nil {
		if errors.Is(err, api.ErrInconsistentEscrow) {
			return nil, httpError(http.StatusBadRequest, "%s", err)
		}
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSaveDraft(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.SaveDraftRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	draft := req.Draft
	draft.Owner = wallet
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	} else {
		existing, err := s.store.GetDraft(draft.ID)
		if err == nil && existing.Owner != wallet {
			return nil, httpError(http.StatusNotFound, "draft not found")
		}
	}
	draft.UpdatedAt = s.now().UTC()
	if err := s.store.SaveDraft(&draft); err != nil {
		return nil, err
	}
	return api.SaveDraftResponse{ID: draft.ID}, nil
}

func (s *Server) handleDeleteDraft(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.DeleteDraftRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	draft, err := s.store.GetDraft(req.ID)
	if err != nil || draft.Owner != wallet {
		return nil, httpError(http.StatusNotFound, "draft not found")
	}
	if err := s.store.DeleteDraft(req.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// handleUploadAttachment stores one encrypted attachment blob. Uploads are
// confined to the caller's own prefix; the unguessable UUID in the path is
// what gates later reads, the content itself is ciphertext the relay
// cannot open.
func (s *Server) handleUploadAttachment(env *api.Envelope, wallet string) (interface{}, error) {
	var req api.UploadAttachmentRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	prefix := "attachments/" + wallet + "/"
	if len(req.StoragePath) <= len(prefix) || req.StoragePath[:len(prefix)] != prefix {
		return nil, httpError(http.StatusForbidden, "storage path outside caller prefix")
	}

	content, err := base64.StdEncoding.DecodeString(req.ContentB64)
	if err != nil {
		return nil, httpError(http.StatusBadRequest, "malformed attachment content")
	}
	if len(content) > maxAttachmentBytes {
		return nil, httpError(http.StatusRequestEntityTooLarge, "attachment exceeds %d bytes", maxAttachmentBytes)
	}

	if err := s.blobs.Put(req.StoragePath, content); err != nil {
		if errors.Is(err, ErrInvalidBlobPath) {
			return nil, httpError(http.StatusBadRequest, "invalid storage path")
		}
		return nil, err
	}
	s.metrics.blobBytes.Add(float64(len(content)))
	return api.UploadAttachmentResponse{StoragePath: req.StoragePath}, nil
}

func (s *Server) handleGetAttachment(env *api.Envelope) (interface{}, error) {
	var req api.GetAttachmentRequest
	if err := decodeData(env, &req); err != nil {
		return nil, err
	}
	content, err := s.blobs.Get(req.StoragePath)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) || errors.Is(err, ErrInvalidBlobPath) {
			return nil, httpError(http.StatusNotFound, "attachment not found")
		}
		return nil, err
	}
	return api.GetAttachmentResponse{ContentB64: base64.StdEncoding.EncodeToString(content)}, nil
}
