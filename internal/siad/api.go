package siad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"siactl/internal/services"
	"siactl/internal/units"
)

// DaemonVersion returns the running daemon's version.
func (c *Client) DaemonVersion(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	err := c.CallJSON(ctx, Path("/daemon/version"), &info)
	return info, err
}

// DaemonStop asks the daemon to shut down.
func (c *Client) DaemonStop(ctx context.Context) error {
	_, err := c.Call(ctx, Path("/daemon/stop"))
	return err
}

// DaemonUpdatesCheck reports whether a newer release is available.
func (c *Client) DaemonUpdatesCheck(ctx context.Context) (UpdateInfo, error) {
	var info UpdateInfo
	err := c.CallJSON(ctx, Path("/daemon/updates/check"), &info)
	return info, err
}

// DaemonUpdatesApply installs an available update.
func (c *Client) DaemonUpdatesApply(ctx context.Context, params url.Values) error {
	_, err := c.Call(ctx, Get("/daemon/updates/apply", params))
	return err
}

// Gateway returns the gateway address and peer list.
func (c *Client) Gateway(ctx context.Context) (GatewayInfo, error) {
	var info GatewayInfo
	err := c.CallJSON(ctx, Path("/gateway"), &info)
	return info, err
}

// Consensus returns the consensus summary.
func (c *Client) Consensus(ctx context.Context) (ConsensusInfo, error) {
	var info ConsensusInfo
	err := c.CallJSON(ctx, Path("/consensus"), &info)
	return info, err
}

// ConsensusBlock looks up a block by "height" or "id". The block is returned
// undecoded.
func (c *Client) ConsensusBlock(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return c.Call(ctx, Get("/consensus/block", params))
}

// Wallet returns wallet status and balances.
func (c *Client) Wallet(ctx context.Context) (WalletInfo, error) {
	var info WalletInfo
	err := c.CallJSON(ctx, Path("/wallet"), &info)
	return info, err
}

// WalletAddress generates a new receive address.
func (c *Client) WalletAddress(ctx context.Context) (string, error) {
	var info WalletAddressInfo
	err := c.CallJSON(ctx, Path("/wallet/address"), &info)
	return info.Address, err
}

// WalletAddresses lists every address the wallet has generated.
func (c *Client) WalletAddresses(ctx context.Context) ([]string, error) {
	var info WalletAddressesInfo
	err := c.CallJSON(ctx, Path("/wallet/addresses"), &info)
	return info.Addresses, err
}

// WalletBackup writes a wallet backup to destination on the daemon's host.
func (c *Client) WalletBackup(ctx context.Context, destination string) error {
	_, err := c.Call(ctx, Post("/wallet/backup", url.Values{"destination": {destination}}))
	return err
}

// WalletInit creates a new wallet and returns its primary seed.
func (c *Client) WalletInit(ctx context.Context, password, dictionary string, force bool) (string, error) {
	form := url.Values{}
	if password != "" {
		form.Set("encryptionpassword", password)
	}
	if dictionary != "" {
		form.Set("dictionary", dictionary)
	}
	if force {
		form.Set("force", "true")
	}
	var info WalletInitInfo
	err := c.CallJSON(ctx, Post("/wallet/init", form), &info)
	return info.PrimarySeed, err
}

// WalletLoad033x imports a v0.3.3.x wallet file.
func (c *Client) WalletLoad033x(ctx context.Context, source, password string) error {
	form := url.Values{"source": {source}, "encryptionpassword": {password}}
	_, err := c.Call(ctx, Post("/wallet/load/033x", form))
	return err
}

// WalletLoadSeed adds a seed to the wallet.
func (c *Client) WalletLoadSeed(ctx context.Context, password, dictionary, seed string) error {
	form := url.Values{"encryptionpassword": {password}, "seed": {seed}}
	if dictionary != "" {
		form.Set("dictionary", dictionary)
	}
	_, err := c.Call(ctx, Post("/wallet/load/seed", form))
	return err
}

// WalletLoadSiag imports siag key files.
func (c *Client) WalletLoadSiag(ctx context.Context, password string, keyfiles []string) error {
	form := url.Values{
		"encryptionpassword": {password},
		"keyfiles":           {strings.Join(keyfiles, ",")},
	}
	_, err := c.Call(ctx, Post("/wallet/load/siag", form))
	return err
}

// WalletLock locks the wallet.
func (c *Client) WalletLock(ctx context.Context) error {
	_, err := c.Call(ctx, Request{Method: http.MethodPost, Path: "/wallet/lock"})
	return err
}

// WalletSeeds returns the wallet's seeds rendered in dictionary.
func (c *Client) WalletSeeds(ctx context.Context, dictionary string) (WalletSeedsInfo, error) {
	query := url.Values{}
	if dictionary != "" {
		query.Set("dictionary", dictionary)
	}
	var info WalletSeedsInfo
	err := c.CallJSON(ctx, Get("/wallet/seeds", query), &info)
	return info, err
}

// WalletSiacoins sends hastings to destination. The amount must be a positive
// whole number of hastings and the destination a well-formed address.
func (c *Client) WalletSiacoins(ctx context.Context, hastings units.Amount, destination string) (SendResult, error) {
	form, err := sendForm(hastings, destination)
	if err != nil {
		return SendResult{}, err
	}
	var result SendResult
	err = c.CallJSON(ctx, Post("/wallet/siacoins", form), &result)
	return result, err
}

// WalletSiafunds sends siafunds to destination.
func (c *Client) WalletSiafunds(ctx context.Context, amount units.Amount, destination string) (SendResult, error) {
	form, err := sendForm(amount, destination)
	if err != nil {
		return SendResult{}, err
	}
	var result SendResult
	err = c.CallJSON(ctx, Post("/wallet/siafunds", form), &result)
	return result, err
}

// WalletTransaction looks up one transaction by id.
func (c *Client) WalletTransaction(ctx context.Context, id string) (ProcessedTransaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ProcessedTransaction{}, services.Wrap(services.ErrValidation, "siad", "wallet transaction", "transaction id is required", nil)
	}
	var info TransactionInfo
	err := c.CallJSON(ctx, Path("/wallet/transaction/"+url.PathEscape(id)), &info)
	return info.Transaction, err
}

// WalletTransactions lists transactions between "startheight" and
// "endheight".
func (c *Client) WalletTransactions(ctx context.Context, params url.Values) (TransactionsInfo, error) {
	var info TransactionsInfo
	err := c.CallJSON(ctx, Get("/wallet/transactions", params), &info)
	return info, err
}

// WalletAddressTransactions lists transactions touching addr.
func (c *Client) WalletAddressTransactions(ctx context.Context, addr string) ([]ProcessedTransaction, error) {
	if !units.IsValidAddress(addr) {
		return nil, services.Wrap(services.ErrValidation, "siad", "wallet transactions", "invalid address", units.ErrInvalidAddress)
	}
	var info struct {
		Transactions []ProcessedTransaction `json:"transactions"`
	}
	err := c.CallJSON(ctx, Path("/wallet/transactions/"+addr), &info)
	return info.Transactions, err
}

// WalletUnlock unlocks the wallet.
func (c *Client) WalletUnlock(ctx context.Context, password string) error {
	_, err := c.Call(ctx, Post("/wallet/unlock", url.Values{"encryptionpassword": {password}}))
	return err
}

// WalletTransactionsRange is a convenience wrapper over WalletTransactions.
func (c *Client) WalletTransactionsRange(ctx context.Context, start, end uint64) (TransactionsInfo, error) {
	return c.WalletTransactions(ctx, url.Values{
		"startheight": {strconv.FormatUint(start, 10)},
		"endheight":   {strconv.FormatUint(end, 10)},
	})
}

func sendForm(amount units.Amount, destination string) (url.Values, error) {
	if !units.IsValidAddress(destination) {
		return nil, services.Wrap(services.ErrValidation, "siad", "send", "invalid destination address", units.ErrInvalidAddress)
	}
	if amount.Sign() <= 0 || !amount.IsIntegral() {
		return nil, services.Wrap(services.ErrValidation, "siad", "send", "amount must be a positive whole number", units.ErrInvalidAmount)
	}
	return url.Values{
		"amount":      {amount.String()},
		"destination": {destination},
	}, nil
}
