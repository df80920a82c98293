package model

// BalanceResponse represents response for GET /wallet/balance
type BalanceResponse struct {
	Address    string     `json:"address"`
	WalletType WalletType `json:"walletType"`
	SOL        string     `json:"sol"`
	USDC       string     `json:"usdc,omitempty"`     // empty on clusters without a USDC mint
	SOLPrice   string     `json:"solPrice,omitempty"` // per SOL in Currency, empty if the price lookup failed
	Currency   string     `json:"currency,omitempty"`
}
