package siad

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"siactl/internal/services"
	"siactl/internal/units"
)

const testAddress = "17d25299caeccaa7d1128a355c6c2e6d3a5a9a8ba4e4c2f1b9d3c7e5e4b6c8a9d0e1f2a3b4c5"

type fakeDaemon struct {
	mu       sync.Mutex
	requests []string
	forms    []url.Values
	routes   map[string]string
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.forms = append(f.forms, r.PostForm)
	body, ok := f.routes[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"404 - Refer to API.md"}`)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (f *fakeDaemon) last() (string, url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return "", nil
	}
	return f.requests[len(f.requests)-1], f.forms[len(f.forms)-1]
}

func TestWalletDecodesCurrencyExactly(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/wallet": `{
			"encrypted": true,
			"unlocked": true,
			"confirmedsiacoinbalance": "123456789012345678901234567890",
			"unconfirmedoutgoingsiacoins": "0",
			"unconfirmedincomingsiacoins": "1000000000000000000000000",
			"siafundbalance": "2",
			"siacoinclaimbalance": "0"
		}`,
	}}
	client, _ := newTestClient(t, daemon)

	info, err := client.Wallet(context.Background())
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !info.Unlocked || !info.Encrypted {
		t.Fatalf("unexpected flags %#v", info)
	}
	if got := info.ConfirmedSiacoinBalance.String(); got != "123456789012345678901234567890" {
		t.Fatalf("balance lost precision: %s", got)
	}
	if got := units.ToSiacoins(info.ConfirmedSiacoinBalance).String(); got != "123456.78901234567890123456789" {
		t.Fatalf("unexpected siacoin balance %s", got)
	}
	if !units.ToSiacoins(info.UnconfirmedIncomingSiacoins).Equal(units.NewAmount(1)) {
		t.Fatalf("expected 1 SC incoming, got %s", info.UnconfirmedIncomingSiacoins)
	}
}

func TestGatewayAcceptsLegacyShapes(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/gateway": `{"Address":"10.0.0.1:9981","peers":["10.0.0.2:9981",{"netaddress":"10.0.0.3:9981","inbound":true}]}`,
	}}
	client, _ := newTestClient(t, daemon)

	info, err := client.Gateway(context.Background())
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	if info.NetAddress != "10.0.0.1:9981" {
		t.Fatalf("unexpected address %q", info.NetAddress)
	}
	if len(info.Peers) != 2 || info.Peers[0].NetAddress != "10.0.0.2:9981" || !info.Peers[1].Inbound {
		t.Fatalf("unexpected peers %#v", info.Peers)
	}
}

func TestDaemonEndpoints(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/daemon/version":       `{"version":"1.3.2","gitrevision":"abc"}`,
		"/daemon/updates/check": `{"available":true,"version":"1.4.0"}`,
		"/daemon/updates/apply": ``,
		"/consensus":            `{"synced":true,"height":150000,"currentblock":"00000000abc"}`,
	}}
	client, _ := newTestClient(t, daemon)
	ctx := context.Background()

	version, err := client.DaemonVersion(ctx)
	if err != nil || version.Version != "1.3.2" {
		t.Fatalf("unexpected version %#v err=%v", version, err)
	}
	update, err := client.DaemonUpdatesCheck(ctx)
	if err != nil || !update.Available || update.Version != "1.4.0" {
		t.Fatalf("unexpected update %#v err=%v", update, err)
	}
	if err := client.DaemonUpdatesApply(ctx, url.Values{"version": {"1.4.0"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if req, _ := daemon.last(); req != "GET /daemon/updates/apply" {
		t.Fatalf("unexpected request %q", req)
	}
	cs, err := client.Consensus(ctx)
	if err != nil || !cs.Synced || cs.Height != 150000 {
		t.Fatalf("unexpected consensus %#v err=%v", cs, err)
	}
}

func TestWalletSiacoinsValidatesBeforeSending(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/wallet/siacoins": `{"transactionids":["a","b"]}`,
	}}
	client, _ := newTestClient(t, daemon)
	ctx := context.Background()

	cases := []struct {
		name   string
		amount units.Amount
		dest   string
	}{
		{"bad address", units.NewAmount(1), "not-an-address"},
		{"uppercase address", units.NewAmount(1), strings.ToUpper(testAddress)},
		{"zero", units.NewAmount(0), testAddress},
		{"fractional", units.MustParseAmount("0.5"), testAddress},
		{"negative", units.NewAmount(-4), testAddress},
	}
	for _, tc := range cases {
		if _, err := client.WalletSiacoins(ctx, tc.amount, tc.dest); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	if req, _ := daemon.last(); req != "" {
		t.Fatalf("invalid sends reached the daemon: %q", req)
	}

	hastings := units.ToHastings(units.MustParseAmount("1.5"))
	result, err := client.WalletSiacoins(ctx, hastings, testAddress)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(result.TransactionIDs) != 2 {
		t.Fatalf("unexpected result %#v", result)
	}
	req, form := daemon.last()
	if req != "POST /wallet/siacoins" {
		t.Fatalf("unexpected request %q", req)
	}
	if form.Get("amount") != "1500000000000000000000000" || form.Get("destination") != testAddress {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestWalletTransactionUsesID(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/wallet/transaction/abc123": `{"transaction":{"transactionid":"abc123","confirmationheight":10,"outputs":[{"fundtype":"siacoin output","value":"25"}]}}`,
	}}
	client, _ := newTestClient(t, daemon)

	txn, err := client.WalletTransaction(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if txn.TransactionID != "abc123" || txn.ConfirmationHeight != 10 {
		t.Fatalf("unexpected txn %#v", txn)
	}
	if len(txn.Outputs) != 1 || !txn.Outputs[0].Value.Equal(units.NewAmount(25)) {
		t.Fatalf("unexpected outputs %#v", txn.Outputs)
	}
	if _, err := client.WalletTransaction(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty id, got %v", err)
	}
}

func TestWalletMutationsPostForms(t *testing.T) {
	daemon := &fakeDaemon{routes: map[string]string{
		"/wallet/unlock":    ``,
		"/wallet/lock":      ``,
		"/wallet/init":      `{"primaryseed":"words words words"}`,
		"/wallet/load/siag": ``,
	}}
	client, _ := newTestClient(t, daemon)
	ctx := context.Background()

	if err := client.WalletUnlock(ctx, "pw"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if req, form := daemon.last(); req != "POST /wallet/unlock" || form.Get("encryptionpassword") != "pw" {
		t.Fatalf("unexpected unlock %q %v", req, form)
	}
	if err := client.WalletLock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	seed, err := client.WalletInit(ctx, "", "english", true)
	if err != nil || seed != "words words words" {
		t.Fatalf("unexpected init %q err=%v", seed, err)
	}
	if _, form := daemon.last(); form.Get("force") != "true" || form.Get("dictionary") != "english" || form.Has("encryptionpassword") {
		t.Fatalf("unexpected init form %v", form)
	}
	if err := client.WalletLoadSiag(ctx, "pw", []string{"a.siakey", "b.siakey"}); err != nil {
		t.Fatalf("load siag: %v", err)
	}
	if _, form := daemon.last(); form.Get("keyfiles") != "a.siakey,b.siakey" {
		t.Fatalf("unexpected keyfiles %v", form)
	}
}

func TestUnknownEndpointIsAPIError(t *testing.T) {
	client, _ := newTestClient(t, &fakeDaemon{routes: map[string]string{}})
	_, err := client.Consensus(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}
