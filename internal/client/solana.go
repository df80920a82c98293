package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// USDC mint per cluster. Circle has no testnet deployment.
var usdcMints = map[model.Cluster]string{
	model.ClusterMainnetBeta: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	model.ClusterDevnet:      "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
}

// RPC is the subset of the Solana JSON-RPC API the client uses
type RPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Balance holds raw on-chain amounts. USDCMicro is nil when the cluster has no USDC mint.
type Balance struct {
	SOLLamports uint64
	USDCMicro   *uint64
}

// SolanaClient is a client for working with Solana RPC
type SolanaClient struct {
	rpcClient RPC
	usdcMint  *solana.PublicKey
}

// NewSolanaClient creates a client for rpcURL on the given cluster
func NewSolanaClient(rpcURL string, cluster model.Cluster) (*SolanaClient, error) {
	return NewSolanaClientWithRPC(rpc.New(rpcURL), cluster)
}

// NewSolanaClientWithRPC wraps an existing RPC implementation
func NewSolanaClientWithRPC(r RPC, cluster model.Cluster) (*SolanaClient, error) {
	c := &SolanaClient{rpcClient: r}
	if mint, ok := usdcMints[cluster]; ok {
		mintPubKey, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("invalid USDC mint address: %w", err)
		}
		c.usdcMint = &mintPubKey
	}
	return c, nil
}

// GetBalance gets SOL (lamports) and USDC (micro units) balance for owner
func (c *SolanaClient) GetBalance(ctx context.Context, owner solana.PublicKey) (*Balance, error) {
	sol, err := c.rpcClient.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}

	out := &Balance{SOLLamports: sol.Value}
	if c.usdcMint == nil {
		return out, nil
	}

	usdc, err := c.getUSDCBalanceMicro(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get USDC balance: %w", err)
	}
	out.USDCMicro = &usdc
	return out, nil
}

// getUSDCBalanceMicro gets USDC balance in micro units (10^-6 USDC)
func (c *SolanaClient) getUSDCBalanceMicro(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ataAddress, _, err := solana.FindAssociatedTokenAddress(owner, *c.usdcMint)
	if err != nil {
		return 0, fmt.Errorf("failed to find associated token account address: %w", err)
	}

	balance, err := c.rpcClient.GetTokenAccountBalance(ctx, ataAddress, rpc.CommitmentConfirmed)
	if err != nil {
		// A wallet that never held USDC has no token account
		if isATANotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get token account balance: %w", err)
	}
	if balance == nil || balance.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse USDC balance amount: %w", err)
	}
	return amount, nil
}

// isATANotFoundError checks if error indicates that token account doesn't exist
func isATANotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}
