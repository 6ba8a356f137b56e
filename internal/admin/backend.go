package admin

import (
	"context"

	"github.com/dmitrijs2005/mailtoken/internal/server"
	"github.com/dmitrijs2005/mailtoken/internal/server/config"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mailtoken/internal/server/services"
)

// PostgresOpener opens the pool the same way the server does and builds
// the services over it.
func PostgresOpener(ctx context.Context, cfg *config.Config) (*Backend, error) {
	rm := repomanager.NewPostgresRepositoryManager()

	db, err := server.OpenDB(ctx, cfg, rm)
	if err != nil {
		return nil, err
	}

	return &Backend{
		Users:  services.NewUserService(db, rm),
		Tokens: services.NewTokenService(rm.Users(db), cfg),
		Close:  db.Close,
	}, nil
}
