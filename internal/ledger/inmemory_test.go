package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	walletCode := WalletCode(common.HexToAddress("0x01"))
	ownerCode := AccountCode(common.HexToAddress("0x02"))
	if err := l.EnsureAccount(ctx, walletCode); err != nil {
		t.Fatalf("ensure wallet account: %v", err)
	}
	if err := l.EnsureAccount(ctx, ownerCode); err != nil {
		t.Fatalf("ensure owner account: %v", err)
	}

	SeedBalance(l, walletCode, 10_000)

	res, err := l.Transfer(ctx, walletCode, ownerCode, KindWithdrawal, "client-1", 1_500)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if res.FromBalance != 8_500 || res.ToBalance != 1_500 {
		t.Fatalf("unexpected balances: %+v", res)
	}

	ledgerImpl := l.(*inMemoryLedger)
	total := ledgerImpl.balances[walletCode] + ledgerImpl.balances[ownerCode]
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	l.EnsureAccount(ctx, "account:b")
	SeedBalance(l, "wallet:a", 5_000)

	if _, err := l.Transfer(ctx, "wallet:a", "account:b", KindWithdrawal, "dup", 500); err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	if _, err := l.Transfer(ctx, "wallet:a", "account:b", KindWithdrawal, "dup", 500); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestInMemoryLedger_RejectsOverdraftAndUnknownAccounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	l.EnsureAccount(ctx, "account:b")
	SeedBalance(l, "wallet:a", 100)

	if _, err := l.Transfer(ctx, "wallet:a", "account:b", KindWithdrawal, "over", 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := l.Transfer(ctx, "wallet:a", "account:missing", KindWithdrawal, "missing", 1); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown account, got %v", err)
	}
	if _, err := l.Balance(ctx, "account:missing"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown account on balance, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentTransfers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	l.EnsureAccount(ctx, "account:b")
	SeedBalance(l, "wallet:a", 100_000)
	ledgerImpl := l.(*inMemoryLedger)

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txID := fmt.Sprintf("tx-%d", i)
			if _, err := l.Transfer(ctx, "wallet:a", "account:b", KindDeposit, txID, amount); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := ledgerImpl.balances["wallet:a"] + ledgerImpl.balances["account:b"]
	if total != 100_000 {
		t.Fatalf("ledger not balanced after concurrency, total=%d", total)
	}
}

func TestAccountCodesAreCaseInsensitive(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")
	if got, want := AccountCode(addr), "account:0xabcdef0000000000000000000000000000000001"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got := IdentityCode(42); got != "identity:42" {
		t.Fatalf("unexpected identity code %s", got)
	}
}

func TestInMemoryLedger_MintIssuesFromTreasury(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	holder := AccountCode(common.HexToAddress("0x05"))

	if _, err := l.Mint(ctx, holder, "mint-1", 700); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown account before the holder is opened, got %v", err)
	}
	l.EnsureAccount(ctx, holder)

	res, err := l.Mint(ctx, holder, "mint-1", 700)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if res.ToBalance != 700 || res.FromBalance != -700 {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if _, err := l.Mint(ctx, holder, "mint-1", 700); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate mint to be rejected, got %v", err)
	}
	if bal, _ := l.Balance(ctx, holder); bal != 700 {
		t.Fatalf("expected holder balance 700, got %d", bal)
	}
	if _, err := l.Mint(ctx, holder, "mint-2", 0); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected non-positive mint to fail, got %v", err)
	}
}
