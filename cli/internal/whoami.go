package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ForumUser is the /api/me response
type ForumUser struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Userslug string `json:"userslug"`
	Picture  string `json:"picture,omitempty"`
	Role     string `json:"role"`
	Admin    bool   `json:"admin"`
}

// Whoami presents token to the forum the way a browser would: one request
// carrying the shared cookie to establish a session, then /api/me on that
// session. Redirects are reported, not followed.
func Whoami(ctx context.Context, client *http.Client, forumURL, cookieName, token string) (*ForumUser, error) {
	base := strings.TrimRight(forumURL, "/")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := *client
	c.Jar = jar
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return nil, err
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forum request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, fmt.Errorf("forum redirected to %q, the token was not accepted", resp.Header.Get("Location"))
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err = c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forum request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum did not log in the token (status %d)", resp.StatusCode)
	}

	var user ForumUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode /api/me: %w", err)
	}
	return &user, nil
}

func newWhoamiCommand() *cobra.Command {
	var (
		flags   identityFlags
		token   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Log in to the forum with a shared token and show the resulting account",
		Long: `Log in to the forum of the current context with a shared token and print
the local account it resolved to. Pass --token, or identity flags to mint one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCliContext(cmd)
			ctx, err := cc.Current()
			if err != nil {
				return err
			}
			settings := ctx.Settings()

			if token == "" {
				if token, err = flags.mint(settings); err != nil {
					return err
				}
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cc.Logger.Debug("calling forum", "url", ctx.ForumURL, "cookie", settings.CookieName)
			user, err := Whoami(reqCtx, &http.Client{}, ctx.ForumURL, settings.CookieName, token)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "uid %d %s (%s) role=%s\n", user.UID, user.Username, user.Userslug, user.Role)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&token, "token", "", "Use this token instead of minting one")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}
