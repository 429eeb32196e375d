package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"steemauth/internal/domain"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a Steem account",
	}
	cmd.AddCommand(loginKeyCmd(), loginSteemLoginCmd(), loginKeychainCmd())
	return cmd
}

// login key <user>: verify a private key against the chain and store it under a PIN.
func loginKeyCmd() *cobra.Command {
	var wif, pin string
	cmd := &cobra.Command{
		Use:   "key <username>",
		Short: "Log in with a posting or active private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			username := domain.Username(args[0])

			var err error
			if wif == "" {
				wif, err = terminal.ReadSecret(ctx, fmt.Sprintf("Private key of @%s: ", username))
				if err != nil {
					return err
				}
			}
			if pin == "" {
				pin, err = terminal.ReadSecret(ctx, "Choose a PIN: ")
				if err != nil {
					return err
				}
				confirm, err := terminal.ReadSecret(ctx, "Repeat the PIN: ")
				if err != nil {
					return err
				}
				if confirm != pin {
					return errors.New("PINs do not match")
				}
			}

			if err := appCtx.Auth.LoginDirect(ctx, username, wif, pin); err != nil {
				return err
			}
			fmt.Printf("Logged in as @%s\n", appCtx.Auth.Session().Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&wif, "wif", "", "private key (prompted without echo when omitted)")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN protecting the stored key (prompted when omitted)")
	return cmd
}

// login steemlogin [token]: exchange an access token, or print the authorize link.
func loginSteemLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steemlogin [access-token]",
		Short: "Log in with a SteemLogin access token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Printf("Authorize the app, then rerun with the access_token of the redirect:\n  %s\n",
					appCtx.SteemLogin.LoginURL(nil, ""))
				return nil
			}

			if err := appCtx.Auth.LoginThirdParty(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Logged in as @%s\n", appCtx.Auth.Session().Username)
			return nil
		},
	}
}

// login keychain <user>: serve the bridge until the Keychain shim connects and signs.
func loginKeychainCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "keychain <username>",
		Short: "Log in through the Keychain browser extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", cfg.Listen)
			if err != nil {
				return fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			served := make(chan error, 1)
			go func() {
				served <- appCtx.Serve(ctx, ln)
			}()

			fmt.Printf("Waiting for the Keychain shim on http://%s ...\n", ln.Addr())
			err = awaitExtension(ctx)
			if err == nil {
				err = appCtx.Auth.LoginExtension(ctx, domain.Username(args[0]))
			}
			cancel()
			if serr := <-served; serr != nil {
				log.Warn().Err(serr).Msg("bridge stopped with error")
			}
			if err != nil {
				return err
			}

			fmt.Printf("Logged in as @%s\n", appCtx.Auth.Session().Username)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for the extension")
	return cmd
}

func awaitExtension(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for !appCtx.Keychain.Available() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrExtensionUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
