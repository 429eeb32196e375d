package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"steemauth/internal/domain"
	"steemauth/internal/services/dispatch"
)

// send <operation> <json>: sign and broadcast one operation as the active account.
func sendCmd() *cobra.Command {
	var (
		authority string
		activeKey bool
		message   string
	)
	cmd := &cobra.Command{
		Use:   "send <operation> <json>",
		Short: "Sign and broadcast an operation",
		Example: `  steemauth send vote '{"voter":"alice","author":"bob","permlink":"hello","weight":10000}'
  steemauth send transfer '{"from":"alice","to":"bob","amount":"1.000 STEEM","memo":""}' --auth active`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload domain.Payload
			if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
				return fmt.Errorf("could not decode payload: %w", err)
			}
			required, ok := domain.ParseAuthority(authority)
			if !ok {
				return fmt.Errorf("unknown authority %q", authority)
			}

			opts := dispatch.Options{
				RequiredAuth:   required,
				SuccessMessage: message,
			}
			if activeKey {
				sess := appCtx.Auth.Session()
				key, err := terminal.RequestActiveKey(cmd.Context(), sess.Username, args[0], payload)
				if err != nil {
					return err
				}
				opts.ExplicitActiveKey = key
			}

			res, err := appCtx.Dispatcher.Send(cmd.Context(), args[0], payload, opts)
			var pending *domain.PendingSignatureError
			if errors.As(err, &pending) {
				fmt.Println("Waiting for the signature in SteemLogin.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Println(res.Record.Message)
			fmt.Printf("Transaction ID: %s (via %s)\n", res.TransactionID, res.Method)
			return nil
		},
	}
	cmd.Flags().StringVar(&authority, "auth", "posting", "authority the operation needs (posting, active or owner)")
	cmd.Flags().BoolVar(&activeKey, "active-key", false, "prompt for an active key and sign with it directly")
	cmd.Flags().StringVar(&message, "message", "", "message shown on success")
	return cmd
}
