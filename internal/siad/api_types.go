package siad

import (
	"encoding/json"
	"fmt"

	"siactl/internal/units"
)

// VersionInfo is the /daemon/version response.
type VersionInfo struct {
	Version     string `json:"version"`
	GitRevision string `json:"gitrevision,omitempty"`
	BuildTime   string `json:"buildtime,omitempty"`
}

// UpdateInfo is the /daemon/updates/check response.
type UpdateInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version"`
}

// ConsensusInfo is the /consensus response.
type ConsensusInfo struct {
	Synced       bool            `json:"synced"`
	Height       uint64          `json:"height"`
	CurrentBlock string          `json:"currentblock"`
	Target       json.RawMessage `json:"target,omitempty"`
	Difficulty   string          `json:"difficulty,omitempty"`
}

// Peer is one gateway connection.
type Peer struct {
	NetAddress string `json:"netaddress"`
	Version    string `json:"version,omitempty"`
	Inbound    bool   `json:"inbound,omitempty"`
	Local      bool   `json:"local,omitempty"`
}

// UnmarshalJSON accepts both the object form and the bare address string
// older daemons return.
func (p *Peer) UnmarshalJSON(data []byte) error {
	var addr string
	if err := json.Unmarshal(data, &addr); err == nil {
		*p = Peer{NetAddress: addr}
		return nil
	}
	type peer Peer
	var decoded peer
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode peer: %w", err)
	}
	*p = Peer(decoded)
	return nil
}

// GatewayInfo is the /gateway response.
type GatewayInfo struct {
	NetAddress string `json:"netaddress"`
	Peers      []Peer `json:"peers"`
}

// UnmarshalJSON accepts the legacy "Address" key as well as "netaddress".
func (g *GatewayInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		NetAddress string `json:"netaddress"`
		Address    string `json:"Address"`
		Peers      []Peer `json:"peers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.NetAddress = raw.NetAddress
	if g.NetAddress == "" {
		g.NetAddress = raw.Address
	}
	g.Peers = raw.Peers
	return nil
}

// WalletInfo is the /wallet response. Balances are in hastings.
type WalletInfo struct {
	Encrypted                   bool         `json:"encrypted"`
	Unlocked                    bool         `json:"unlocked"`
	ConfirmedSiacoinBalance     units.Amount `json:"confirmedsiacoinbalance"`
	UnconfirmedOutgoingSiacoins units.Amount `json:"unconfirmedoutgoingsiacoins"`
	UnconfirmedIncomingSiacoins units.Amount `json:"unconfirmedincomingsiacoins"`
	SiafundBalance              units.Amount `json:"siafundbalance"`
	SiacoinClaimBalance         units.Amount `json:"siacoinclaimbalance"`
}

// WalletAddressInfo is the /wallet/address response.
type WalletAddressInfo struct {
	Address string `json:"address"`
}

// WalletAddressesInfo is the /wallet/addresses response.
type WalletAddressesInfo struct {
	Addresses []string `json:"addresses"`
}

// WalletInitInfo is the /wallet/init response.
type WalletInitInfo struct {
	PrimarySeed string `json:"primaryseed"`
}

// WalletSeedsInfo is the /wallet/seeds response.
type WalletSeedsInfo struct {
	PrimarySeed        string   `json:"primaryseed"`
	AddressesRemaining int      `json:"addressesremaining"`
	AllSeeds           []string `json:"allseeds"`
}

// SendResult is returned by /wallet/siacoins and /wallet/siafunds.
type SendResult struct {
	TransactionIDs []string `json:"transactionids"`
}

// TransactionInput is one wallet-relevant input of a processed transaction.
type TransactionInput struct {
	FundType       string       `json:"fundtype"`
	WalletAddress  bool         `json:"walletaddress"`
	RelatedAddress string       `json:"relatedaddress"`
	Value          units.Amount `json:"value"`
}

// TransactionOutput is one wallet-relevant output of a processed transaction.
type TransactionOutput struct {
	FundType       string       `json:"fundtype"`
	MaturityHeight uint64       `json:"maturityheight"`
	WalletAddress  bool         `json:"walletaddress"`
	RelatedAddress string       `json:"relatedaddress"`
	Value          units.Amount `json:"value"`
}

// ProcessedTransaction is a transaction annotated by the wallet.
type ProcessedTransaction struct {
	TransactionID         string              `json:"transactionid"`
	ConfirmationHeight    uint64              `json:"confirmationheight"`
	ConfirmationTimestamp uint64              `json:"confirmationtimestamp"`
	Inputs                []TransactionInput  `json:"inputs"`
	Outputs               []TransactionOutput `json:"outputs"`
}

// TransactionInfo is the /wallet/transaction/<id> response.
type TransactionInfo struct {
	Transaction ProcessedTransaction `json:"transaction"`
}

// TransactionsInfo is the /wallet/transactions response.
type TransactionsInfo struct {
	ConfirmedTransactions   []ProcessedTransaction `json:"confirmedtransactions"`
	UnconfirmedTransactions []ProcessedTransaction `json:"unconfirmedtransactions"`
}
