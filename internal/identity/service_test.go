package identity

import (
    "context"
    "errors"
    "testing"

    "github.com/ethereum/go-ethereum/common"

    "github.com/guardwallet/guard_wallet/internal/ledger"
)

func TestRegisterAndResolve(t *testing.T) {
    led := ledger.NewInMemory()
    svc := NewService(NewMemoryRepository(), led)
    ctx := context.Background()

    addr := common.HexToAddress("0x1000000000000000000000000000000000000001")
    ident, err := svc.Register(ctx, RegisterInput{Address: addr, Label: "alice"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    if ident.EIN != 1 {
        t.Fatalf("expected first EIN to be 1, got %d", ident.EIN)
    }

    ein, err := svc.ResolveOwner(ctx, addr)
    if err != nil {
        t.Fatalf("resolve: %v", err)
    }
    if ein != ident.EIN {
        t.Fatalf("expected EIN %d, got %d", ident.EIN, ein)
    }

    recovery, label, err := svc.RecoveryDetails(ctx, ein)
    if err != nil {
        t.Fatalf("recovery details: %v", err)
    }
    if recovery != addr || label != "alice" {
        t.Fatalf("expected recovery defaulting to the owner address, got %s %q", recovery.Hex(), label)
    }

    if _, err := led.Balance(ctx, ledger.IdentityCode(ein)); err != nil {
        t.Fatalf("identity balance account not opened: %v", err)
    }
}

func TestRegisterRejectsDuplicateAddress(t *testing.T) {
    svc := NewService(NewMemoryRepository(), nil)
    ctx := context.Background()
    addr := common.HexToAddress("0x1000000000000000000000000000000000000002")

    if _, err := svc.Register(ctx, RegisterInput{Address: addr, Label: "bob"}); err != nil {
        t.Fatalf("register: %v", err)
    }
    if _, err := svc.Register(ctx, RegisterInput{Address: addr, Label: "bob-again"}); !errors.Is(err, ErrAddressTaken) {
        t.Fatalf("expected address taken, got %v", err)
    }
}

func TestResolveUnknownAddress(t *testing.T) {
    svc := NewService(NewMemoryRepository(), nil)
    if _, err := svc.ResolveOwner(context.Background(), common.HexToAddress("0xdead")); !errors.Is(err, ErrNotFound) {
        t.Fatalf("expected not found, got %v", err)
    }
}
