package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
)

// BuildClaims lays identity out the way mapping expects to read it back,
// nested under the parent key when one is configured. Extra claims go next
// to the identity fields. A positive ttl adds iat and exp.
func BuildClaims(mapping config.FieldMapping, id auth.Identity, extra map[string]string, ttl time.Duration, now time.Time) jwt.MapClaims {
	fields := map[string]any{}
	set := func(key, value string) {
		if key != "" && value != "" {
			fields[key] = value
		}
	}
	set(mapping.ID, id.ExternalID)
	set(mapping.Username, id.Username)
	set(mapping.Email, id.Email)
	set(mapping.Picture, id.Picture)
	for k, v := range extra {
		fields[k] = v
	}

	claims := jwt.MapClaims{}
	if mapping.Parent != "" {
		claims[mapping.Parent] = fields
	} else {
		for k, v := range fields {
			claims[k] = v
		}
	}

	if ttl > 0 {
		claims["iat"] = now.Unix()
		claims["exp"] = now.Add(ttl).Unix()
	}
	return claims
}

// MintToken signs an HS256 token for id using the context's settings
func MintToken(settings config.Settings, id auth.Identity, extra map[string]string, ttl time.Duration, now time.Time) (string, error) {
	if settings.Secret == "" {
		return "", fmt.Errorf("%w: secret is not set", config.ErrConfiguration)
	}
	claims := BuildClaims(settings.Payload, id, extra, ttl, now)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(settings.Secret))
}

// InspectToken runs a token through the same checks the forum applies
func InspectToken(settings config.Settings, token string) (auth.Identity, error) {
	claims, err := auth.Verify(token, settings.Secret)
	if err != nil {
		return auth.Identity{}, err
	}
	fields, err := auth.ValidatePayload(claims, settings.Payload)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.ExtractIdentity(fields, settings.Payload), nil
}

type identityFlags struct {
	id       string
	username string
	email    string
	picture  string
	claims   []string
	ttl      time.Duration
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "External user id")
	cmd.Flags().StringVar(&f.username, "username", "", "Username")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.picture, "picture", "", "Picture URL")
	cmd.Flags().StringArrayVar(&f.claims, "claim", nil, "Extra claim as key=value (repeatable)")
	cmd.Flags().DurationVar(&f.ttl, "ttl", time.Hour, "Token lifetime, 0 for no expiry")
}

func (f *identityFlags) mint(settings config.Settings) (string, error) {
	extra, err := parseOptions(f.claims)
	if err != nil {
		return "", err
	}
	id := auth.Identity{
		ExternalID: f.id,
		Username:   f.username,
		Email:      f.email,
		Picture:    f.picture,
	}
	return MintToken(settings, id, extra, f.ttl, time.Now())
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect shared session tokens",
	}
	cmd.AddCommand(newTokenMintCommand())
	cmd.AddCommand(newTokenInspectCommand())
	return cmd
}

func newTokenMintCommand() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a token with the current context's secret and payload mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getCliContext(cmd).Current()
			if err != nil {
				return err
			}
			token, err := flags.mint(ctx.Settings())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTokenInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [TOKEN|-]",
		Short: "Verify a token and show the identity the forum would resolve",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			ctx, err := cc.Current()
			if err != nil {
				return err
			}

			token := "-"
			if len(args) == 1 {
				token = args[0]
			}
			if token == "-" {
				if token, err = readToken(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			id, err := InspectToken(ctx.Settings(), token)
			if err != nil {
				cc.Logger.Debug("token rejected", "error", err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "external id: %s\n", id.ExternalID)
			fmt.Fprintf(out, "username:    %s\n", id.Username)
			fmt.Fprintf(out, "email:       %s\n", id.Email)
			fmt.Fprintf(out, "picture:     %s\n", id.Picture)
			return nil
		},
	}
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
