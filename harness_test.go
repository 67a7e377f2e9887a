package walletmail

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/walletmail/client-go/relay"
)

// testSecret keys the test relay's session tokens.
var testSecret = []byte("0123456789abcdef0123456789abcdef")

// countingWallet wraps a LocalWallet and counts Sign calls, optionally
// declining them.
type countingWallet struct {
	*LocalWallet
	signCalls atomic.Int32
	decline   atomic.Bool
}

func (w *countingWallet) Sign(ctx context.Context, message []byte) ([]byte, error) {
	w.signCalls.Add(1)
	if w.decline.Load() {
		return nil, ErrSignatureDeclined
	}
	return w.LocalWallet.Sign(ctx, message)
}

// testRig is a relay server plus one client wired to it.
type testRig struct {
	server *httptest.Server
	store  *relay.MemoryStore
	wallet *countingWallet
	client *Client
	keyDir string
}

func newTestRelay(t *testing.T) (*httptest.Server, *relay.MemoryStore) {
	t.Helper()
	store := relay.NewMemoryStore()
	srv, err := relay.NewServer(testSecret,
		relay.WithStore(store),
		relay.WithRateLimit(1000, 1000),
	)
	if err != nil {
		t.Fatalf("relay.NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store
}

// newTestClientDir attaches a fresh client to ts for the given wallet,
// using dir as its local key cache.
func newTestClientDir(t *testing.T, ts *httptest.Server, wallet WalletIdentity, dir string) *Client {
	t.Helper()
	client, err := New(wallet,
		WithBaseURL(ts.URL),
		WithKeyDir(dir),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// newTestClient is newTestClientDir with an isolated key directory.
func newTestClient(t *testing.T, ts *httptest.Server, wallet WalletIdentity) *Client {
	t.Helper()
	return newTestClientDir(t, ts, wallet, t.TempDir())
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	ts, store := newTestRelay(t)

	local, err := NewLocalWallet()
	if err != nil {
		t.Fatalf("NewLocalWallet() error = %v", err)
	}
	wallet := &countingWallet{LocalWallet: local}
	keyDir := t.TempDir()

	return &testRig{
		server: ts,
		store:  store,
		wallet: wallet,
		client: newTestClientDir(t, ts, wallet, keyDir),
		keyDir: keyDir,
	}
}

// readyClient is a rig with key setup already completed.
func readyClient(t *testing.T) *testRig {
	t.Helper()
	rig := newTestRig(t)
	if err := rig.client.EnsureKeys(context.Background()); err != nil {
		t.Fatalf("EnsureKeys() error = %v", err)
	}
	return rig
}

func wantErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
