package main

import (
	"context"
	"os"

	internalctx "github.com/deepref-sh/deepref/internal/context"
	"github.com/deepref-sh/deepref/internal/db"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/security"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/deepref-sh/deepref/internal/util"
	"go.uber.org/zap"
)

// Dev helper: creates a verified user account directly in the database.
// Usage: go run ./hack email password [name]
func main() {
	env.Initialize()
	logger := util.Require(zap.NewDevelopment())

	if len(os.Args) < 3 {
		logger.Fatal("usage: create-user <email> <password> [name]")
	}
	email, password := os.Args[1], os.Args[2]
	name := ""
	if len(os.Args) > 3 {
		name = os.Args[3]
	}

	ctx := context.Background()
	pool := util.Require(db.NewPool(ctx))
	defer pool.Close()
	ctx = internalctx.WithDb(ctx, pool)

	userAccount := types.UserAccount{
		Email:        email,
		Name:         name,
		Role:         types.UserRoleUser,
		PasswordHash: util.Require(security.HashPassword(password)),
	}
	util.Must(db.CreateUserAccount(ctx, &userAccount))
	util.Must(db.SetUserAccountEmailVerified(ctx, userAccount.ID))
	logger.Info("user account created", zap.String("id", userAccount.ID.String()))
}
