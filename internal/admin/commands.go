package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/tokens"
)

// ErrInvalidToken is returned by validate for a well-formed token whose
// digest does not match.
var ErrInvalidToken = errors.New("token is invalid")

func emailFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "email",
		Aliases:  []string{"e"},
		Usage:    "user email",
		Required: true,
	}
}

// CreateUserCommand registers a new user.
func CreateUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Create a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "display name",
				Required: true,
			},
			emailFlag(),
		},
		Action: createUser,
	}
}

// ExistsCommand reports whether an email is registered.
func ExistsCommand() *cli.Command {
	return &cli.Command{
		Name:   "exists",
		Usage:  "Check whether a user exists",
		Flags:  []cli.Flag{emailFlag()},
		Action: exists,
	}
}

// IssueCommand prints a token for an existing user.
func IssueCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue",
		Usage: "Issue a token",
		Flags: []cli.Flag{
			emailFlag(),
			&cli.StringFlag{
				Name:  "expire-at",
				Usage: "expiry as " + tokens.ExpiryLayout + " (default: now + ttl)",
			},
		},
		Action: issue,
	}
}

// ValidateCommand checks a token.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "token",
				Usage:    "token to check",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "check-expiry",
				Usage: "also reject tokens whose expiry has passed",
			},
		},
		Action: validate,
	}
}

func createUser(c *cli.Context) error {
	b, err := backend(c)
	if err != nil {
		return err
	}

	req := models.NewUserRequest{Name: c.String("name"), Email: c.String("email")}
	if _, err := b.Users.Register(c.Context, req); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "created %s\n", req.Email)
	return nil
}

func exists(c *cli.Context) error {
	b, err := backend(c)
	if err != nil {
		return err
	}

	ok, err := b.Users.Exists(c.Context, c.String("email"))
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}

	fmt.Fprintln(c.App.Writer, ok)
	return nil
}

func issue(c *cli.Context) error {
	b, err := backend(c)
	if err != nil {
		return err
	}

	expiresAt := b.Tokens.ExpireAt()
	if v := c.String("expire-at"); v != "" {
		t, err := tokens.ParseExpiry(v)
		if err != nil {
			return fmt.Errorf("issue: --expire-at: %w", err)
		}
		expiresAt = t
	}

	info, err := b.Tokens.Info(c.Context, c.String("email"), expiresAt)
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}

	fmt.Fprintln(c.App.Writer, info.Token)
	return nil
}

func validate(c *cli.Context) error {
	b, err := backend(c)
	if err != nil {
		return err
	}
	token := c.String("token")

	var ok bool
	if c.Bool("check-expiry") {
		ok, err = b.Tokens.ValidateAt(c.Context, token, time.Now())
	} else {
		ok, err = b.Tokens.Validate(c.Context, token)
	}

	switch {
	case errors.Is(err, common.ErrTokenExpired):
		fmt.Fprintln(c.App.Writer, "expired")
		return err
	case err != nil:
		return fmt.Errorf("validate: %w", err)
	case !ok:
		fmt.Fprintln(c.App.Writer, "invalid")
		return ErrInvalidToken
	}

	fmt.Fprintln(c.App.Writer, "valid")
	return nil
}
