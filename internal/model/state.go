package model

// ConnectionState is the adapter state machine position
type ConnectionState string

const (
	StateDisconnected       ConnectionState = "DISCONNECTED"
	StateConnecting         ConnectionState = "CONNECTING"
	StateCheckingConnection ConnectionState = "CHECKING_CONNECTION"
	StateConnected          ConnectionState = "CONNECTED"
	StateError              ConnectionState = "ERROR"
)

// WalletConnectionState is the adapter state as seen by callers.
// IsConnected implies State == StateConnected and Error == nil.
type WalletConnectionState struct {
	WalletType           WalletType      `json:"walletType"`
	State                ConnectionState `json:"state"`
	IsConnecting         bool            `json:"isConnecting"`
	IsCheckingConnection bool            `json:"isCheckingConnection"`
	IsConnected          bool            `json:"isConnected"`
	Error                *string         `json:"error"`
}

// ConnectResponse represents response for POST /wallet/{provider}/connect
type ConnectResponse struct {
	ConnectURL string                `json:"connectUrl"`
	State      WalletConnectionState `json:"state"`
}
