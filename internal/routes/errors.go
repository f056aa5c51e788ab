package routes

import (
    "errors"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/guardwallet/guard_wallet/internal/factory"
    "github.com/guardwallet/guard_wallet/internal/identity"
    "github.com/guardwallet/guard_wallet/internal/wallet"
)

func domainError(err error) error {
    switch {
    case errors.Is(err, identity.ErrAddressTaken):
        return fiber.NewError(http.StatusConflict, err.Error())
    case errors.Is(err, identity.ErrInvalidInput), errors.Is(err, factory.ErrInvalidExtraData):
        return fiber.NewError(http.StatusBadRequest, err.Error())
    case errors.Is(err, factory.ErrNoActiveWallet):
        return fiber.NewError(http.StatusNotFound, err.Error())
    case errors.Is(err, factory.ErrReprovisionNotAllowed):
        return fiber.NewError(http.StatusConflict, err.Error())
    }
    return wallet.HTTPError(err)
}
