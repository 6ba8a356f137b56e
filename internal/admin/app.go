// Package admin provides the mailtoken-cli command set: creating users,
// checking existence, and issuing or validating tokens directly against the
// store, sharing the server's configuration.
package admin

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dmitrijs2005/mailtoken/internal/server/config"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/services"
)

// UserService is what the user commands need.
type UserService interface {
	Exists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, req models.NewUserRequest) (bool, error)
}

// TokenService is what the token commands need.
type TokenService interface {
	ExpireAt() time.Time
	Info(ctx context.Context, email string, expiresAt time.Time) (*services.TokenInfo, error)
	Validate(ctx context.Context, token string) (bool, error)
	ValidateAt(ctx context.Context, token string, now time.Time) (bool, error)
}

// Backend bundles the services a command runs against. Close releases
// whatever the Opener acquired.
type Backend struct {
	Users  UserService
	Tokens TokenService
	Close  func() error
}

// Opener builds a Backend from the final configuration.
type Opener func(ctx context.Context, cfg *config.Config) (*Backend, error)

const metaSession = "session"

// session opens the Backend on first use, so help and usage errors never
// touch the store.
type session struct {
	cfg     *config.Config
	open    Opener
	backend *Backend
}

func (s *session) get(ctx context.Context) (*Backend, error) {
	if s.backend == nil {
		b, err := s.open(ctx, s.cfg)
		if err != nil {
			return nil, err
		}
		s.backend = b
	}
	return s.backend, nil
}

// App creates the CLI application. Global flags override values already
// loaded into cfg; the backend is opened by the first command that needs it.
func App(cfg *config.Config, open Opener, out io.Writer) *cli.App {
	return &cli.App{
		Name:   "mailtoken-cli",
		Usage:  "mailtoken administration tool",
		Writer: out,
		Flags:  globalFlags(cfg),
		Commands: []*cli.Command{
			CreateUserCommand(),
			ExistsCommand(),
			IssueCommand(),
			ValidateCommand(),
		},
		Before: func(c *cli.Context) error {
			applyGlobalFlags(c, cfg)
			c.App.Metadata[metaSession] = &session{cfg: cfg, open: open}
			return nil
		},
		After: func(c *cli.Context) error {
			s, _ := c.App.Metadata[metaSession].(*session)
			if s != nil && s.backend != nil && s.backend.Close != nil {
				return s.backend.Close()
			}
			return nil
		},
	}
}

func globalFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dsn",
			Aliases: []string{"d"},
			Usage:   "PostgreSQL DSN",
			Value:   cfg.DatabaseDSN,
		},
		&cli.StringFlag{
			Name:    "secret",
			Aliases: []string{"s"},
			Usage:   "server secret mixed into token digests",
		},
		&cli.IntFlag{
			Name:    "ttl",
			Aliases: []string{"t"},
			Usage:   "token time-to-live, seconds",
			Value:   int(cfg.TokenTTL.Seconds()),
		},
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "apply migrations before running the command",
			Value: false,
		},
		// consumed by config loading; declared so the parser accepts them
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "JSON config file"},
		&cli.StringFlag{Name: "env", Usage: "dotenv file"},
	}
}

func applyGlobalFlags(c *cli.Context, cfg *config.Config) {
	cfg.DatabaseDSN = c.String("dsn")
	if c.IsSet("secret") {
		cfg.AuthSecret = c.String("secret")
	}
	if ttl := c.Int("ttl"); ttl > 0 {
		cfg.TokenTTL = time.Duration(ttl) * time.Second
	}
	cfg.RunMigrations = c.Bool("migrate")
}

func backend(c *cli.Context) (*Backend, error) {
	s, ok := c.App.Metadata[metaSession].(*session)
	if !ok {
		return nil, errors.New("no session")
	}
	return s.get(c.Context)
}
