package services

import (
	"context"
	"fmt"
	"log"

	"bounty-board/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// PaymentVerifier decides whether a payment claim is good enough to close a
// bounty. The trusted variant records whatever the closer says; the on-chain
// variant checks a supplied transaction against the bounty before allowing
// the transition.
type PaymentVerifier interface {
	Verify(ctx context.Context, bounty *models.Bounty, recipientAddress, txSignature string) error
}

// TrustedClaimVerifier accepts any payment claim without touching the chain,
// including one with no recipient at all. This is the original behavior of
// the system and the wired default; switching to on-chain verification is an
// explicit config choice.
type TrustedClaimVerifier struct{}

func NewTrustedClaimVerifier() *TrustedClaimVerifier {
	return &TrustedClaimVerifier{}
}

func (v *TrustedClaimVerifier) Verify(ctx context.Context, bounty *models.Bounty, recipientAddress, txSignature string) error {
	return nil
}

// OnChainVerifier checks a supplied transaction signature against the chain:
// the transaction must be confirmed, must pay the claimed recipient, and the
// paid amount must cover the bounty reward.
type OnChainVerifier struct {
	rpcClient *rpc.Client
	usdcMint  string
}

func NewOnChainVerifier(network, usdcMint string) *OnChainVerifier {
	var rpcURL string
	switch network {
	case "mainnet-beta":
		rpcURL = "https://api.mainnet-beta.solana.com"
	case "testnet":
		rpcURL = "https://api.testnet.solana.com"
	default:
		rpcURL = "https://api.devnet.solana.com"
	}

	return &OnChainVerifier{
		rpcClient: rpc.New(rpcURL),
		usdcMint:  usdcMint,
	}
}

func (v *OnChainVerifier) Verify(ctx context.Context, bounty *models.Bounty, recipientAddress, txSignature string) error {
	if recipientAddress == "" {
		return validationErrorf("recipientAddress is required to close a bounty")
	}
	if txSignature == "" {
		return validationErrorf("txSignature is required when on-chain verification is enabled")
	}

	sig, err := solana.SignatureFromBase58(txSignature)
	if err != nil {
		return validationErrorf("invalid transaction signature: %v", err)
	}

	status, err := v.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return fmt.Errorf("failed to fetch signature status: %w", err)
	}
	if len(status.Value) == 0 || status.Value[0] == nil {
		return validationErrorf("transaction %s not found on chain", txSignature)
	}
	if status.Value[0].Err != nil {
		return validationErrorf("transaction %s failed on chain", txSignature)
	}

	confStatus := status.Value[0].ConfirmationStatus
	if confStatus != rpc.ConfirmationStatusConfirmed && confStatus != rpc.ConfirmationStatusFinalized {
		return validationErrorf("transaction %s is not confirmed yet", txSignature)
	}

	tx, err := v.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("failed to get transaction details: %w", err)
	}

	paid, err := v.amountPaidTo(tx, recipientAddress)
	if err != nil {
		return validationErrorf("could not read transfer from transaction %s: %v", txSignature, err)
	}

	if paid.LessThan(bounty.UsdcAmount) {
		return validationErrorf("transaction pays %s but bounty reward is %s",
			paid.StringFixed(2), bounty.UsdcAmount.StringFixed(2))
	}

	log.Printf("Verified on-chain payment of %s to %s for bounty %s", paid.StringFixed(2), recipientAddress, bounty.ID)
	return nil
}

// amountPaidTo extracts the net amount the transaction moved to the
// recipient. With a configured USDC mint it reads the token balance deltas;
// otherwise it falls back to the native lamport delta of the recipient's
// account, the same extraction the simple transfer path uses.
func (v *OnChainVerifier) amountPaidTo(tx *rpc.GetTransactionResult, recipient string) (decimal.Decimal, error) {
	if tx.Meta == nil {
		return decimal.Zero, fmt.Errorf("transaction has no metadata")
	}

	if v.usdcMint != "" {
		return v.tokenDelta(tx, recipient)
	}

	transaction, err := tx.Transaction.GetTransaction()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode transaction: %w", err)
	}

	for i, key := range transaction.Message.AccountKeys {
		if key.String() != recipient {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			break
		}
		pre := tx.Meta.PreBalances[i]
		post := tx.Meta.PostBalances[i]
		if post <= pre {
			break
		}
		lamports := decimal.NewFromUint64(uint64(post - pre))
		return lamports.Shift(-9), nil
	}

	return decimal.Zero, fmt.Errorf("no transfer to %s found", recipient)
}

func (v *OnChainVerifier) tokenDelta(tx *rpc.GetTransactionResult, recipient string) (decimal.Decimal, error) {
	balanceFor := func(balances []rpc.TokenBalance) decimal.Decimal {
		for _, tb := range balances {
			if tb.Owner == nil || tb.Owner.String() != recipient {
				continue
			}
			if tb.Mint.String() != v.usdcMint {
				continue
			}
			amount, err := decimal.NewFromString(tb.UiTokenAmount.Amount)
			if err != nil {
				continue
			}
			return amount.Shift(-int32(tb.UiTokenAmount.Decimals))
		}
		return decimal.Zero
	}

	delta := balanceFor(tx.Meta.PostTokenBalances).Sub(balanceFor(tx.Meta.PreTokenBalances))
	if delta.IsPositive() {
		return delta, nil
	}
	return decimal.Zero, fmt.Errorf("no token transfer to %s found", recipient)
}
