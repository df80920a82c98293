package wallet

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/walletlink/internal/client"
	"github.com/AlexZinkM/walletlink/internal/common"
	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
)

// BalanceReader reads on-chain balances
type BalanceReader interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (*client.Balance, error)
}

// PriceReader quotes SOL in a fiat currency
type PriceReader interface {
	GetSOLPrice(ctx context.Context, currency string) (string, error)
}

// GetBalance gets the balance of the connected wallet.
// prices may be nil; a failed price lookup only drops the price from the response.
func GetBalance(ctx context.Context, sessions SessionStore, chain BalanceReader, prices PriceReader, currency string) (*model.BalanceResponse, error) {
	session, err := sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if session == nil {
		return nil, model.ErrNoSession
	}

	owner, err := solana.PublicKeyFromBase58(session.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: session address is not a Solana public key", model.ErrInvalidResponse)
	}

	balance, err := chain.GetBalance(ctx, owner)
	if err != nil {
		return nil, err
	}

	// Convert to display strings (no float precision loss)
	resp := &model.BalanceResponse{
		Address:    session.PublicKey,
		WalletType: session.WalletType,
		SOL:        common.LamportsToSOL(balance.SOLLamports),
	}
	if balance.USDCMicro != nil {
		resp.USDC = common.MicroToUSDC(*balance.USDCMicro)
	}

	if prices != nil && currency != "" {
		price, err := prices.GetSOLPrice(ctx, currency)
		if err != nil {
			log.WithError(err).Warn("failed to get SOL price")
		} else {
			resp.SOLPrice = price
			resp.Currency = currency
		}
	}
	return resp, nil
}
