package consolidation

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// lamportFeeBudget is left on the fee payer per signature so the network fee
// never makes the transaction bounce.
const lamportFeeBudget = 5000

// sweepSolana drains every source into one transaction of stacked transfer
// instructions, each signed by its own source key. The first source pays the
// fee.
func (m *Manager) sweepSolana(sources []*Source, plan *Plan) (string, error) {
	client := rpc.New(m.cfg.SolanaRPCURL)
	ctx := context.Background()

	destination, err := solana.PublicKeyFromBase58(plan.DestinationAddress)
	if err != nil {
		return "", errors.Wrap(err, "invalid destination address")
	}

	keys := map[solana.PublicKey]solana.PrivateKey{}
	instructions := []solana.Instruction{}
	var payer solana.PublicKey

	for i, source := range sources {
		from, err := solana.PublicKeyFromBase58(source.Address.Address)
		if err != nil {
			return "", errors.Wrapf(err, "malformed source address %s", source.Address.Address)
		}

		balanceResult, err := client.GetBalance(ctx, from, rpc.CommitmentFinalized)
		if err != nil {
			return "", errors.Wrapf(err, "failed to fetch balance of %s", source.Address.Address)
		}
		lamports := balanceResult.Value

		if i == 0 {
			payer = from
		}
		// Every source signs, so the payer carries one fee budget per
		// signature.
		if from == payer {
			feeBudget := uint64(lamportFeeBudget * len(sources))
			if lamports <= feeBudget {
				return "", errors.Errorf("fee payer %s holds only %d lamports", from, lamports)
			}
			lamports -= feeBudget
		}
		if lamports == 0 {
			continue
		}

		rawKey, err := m.vault.PrivateKey(source.Address)
		if err != nil {
			return "", err
		}
		keys[from] = solana.PrivateKey(rawKey)
		instructions = append(instructions,
			system.NewTransferInstruction(lamports, from, destination).Build())
	}
	if len(instructions) == 0 {
		return "", errors.New("no source address holds any lamports")
	}

	blockhashResult, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch recent blockhash")
	}

	tx, err := solana.NewTransaction(instructions,
		blockhashResult.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return "", errors.Wrap(err, "failed to build transaction")
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if privateKey, ok := keys[key]; ok {
			return &privateKey
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	signature, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}
	return signature.String(), nil
}
