package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

const ownerAddress = "7Qx1LJUMeCXr8ygfwdnEmGbYSsQPrgHrFU7VPuGXJeEH"

type fakeRPC struct {
	lamports   uint64
	balanceErr error
	usdc       string
	tokenErr   error
	tokenCalls int
}

func (f *fakeRPC) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &rpc.GetBalanceResult{Value: f.lamports}, nil
}

func (f *fakeRPC) GetTokenAccountBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: f.usdc}}, nil
}

func TestSolanaClientGetBalance(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58(ownerAddress)

	tests := []struct {
		name      string
		cluster   model.Cluster
		rpc       *fakeRPC
		wantSOL   uint64
		wantUSDC  *uint64
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "devnet with usdc",
			cluster:   model.ClusterDevnet,
			rpc:       &fakeRPC{lamports: 1_500_000_000, usdc: "2500000"},
			wantSOL:   1_500_000_000,
			wantUSDC:  ptr(uint64(2_500_000)),
			wantCalls: 1,
		},
		{
			name:      "no token account",
			cluster:   model.ClusterMainnetBeta,
			rpc:       &fakeRPC{lamports: 10, tokenErr: errors.New("could not find account")},
			wantSOL:   10,
			wantUSDC:  ptr(uint64(0)),
			wantCalls: 1,
		},
		{
			name:    "testnet has no usdc mint",
			cluster: model.ClusterTestnet,
			rpc:     &fakeRPC{lamports: 42},
			wantSOL: 42,
		},
		{
			name:    "rpc failure",
			cluster: model.ClusterDevnet,
			rpc:     &fakeRPC{balanceErr: errors.New("connection refused")},
			wantErr: true,
		},
		{
			name:      "token rpc failure",
			cluster:   model.ClusterDevnet,
			rpc:       &fakeRPC{tokenErr: errors.New("rate limited")},
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewSolanaClientWithRPC(tt.rpc, tt.cluster)
			require.NoError(t, err)

			got, err := c.GetBalance(context.Background(), owner)
			require.Equal(t, tt.wantCalls, tt.rpc.tokenCalls)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantSOL, got.SOLLamports)
			require.Equal(t, tt.wantUSDC, got.USDCMicro)
		})
	}
}

func TestCoinGeckoGetSOLPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" || r.URL.Query().Get("ids") != "solana" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("vs_currencies") != "usd" {
			w.Write([]byte(`{"solana":{}}`))
			return
		}
		w.Write([]byte(`{"solana":{"usd":142.314}}`))
	}))
	defer srv.Close()

	c := NewCoinGeckoClient(srv.URL + "/")

	price, err := c.GetSOLPrice(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, "142.31", price)

	_, err = c.GetSOLPrice(context.Background(), "eur")
	require.Error(t, err)
}

func TestCoinGeckoStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewCoinGeckoClient(srv.URL).GetSOLPrice(context.Background(), "usd")
	require.ErrorContains(t, err, "status 429")
}

func ptr[T any](v T) *T {
	return &v
}
