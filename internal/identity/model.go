package identity

import (
    "time"

    "github.com/ethereum/go-ethereum/common"
)

// Identity is a directory entry. EIN is the stable owner identifier every
// wallet is bound to; Address is the account allowed to act for it.
type Identity struct {
    EIN             uint64
    Address         common.Address
    RecoveryAddress common.Address
    Label           string
    CreatedAt       time.Time
}

// RegisterInput request structure.
type RegisterInput struct {
    Address         common.Address
    RecoveryAddress common.Address
    Label           string
}
