package commands

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pliu/hush/internal/client"
	"github.com/pliu/hush/internal/crypto"
	"github.com/pliu/hush/internal/models"
	"github.com/spf13/cobra"
)

func roomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Manage rooms",
	}
	cmd.AddCommand(roomCreateCmd())
	return cmd
}

// room create: open a room and print a link that carries its secret.
func roomCreateCmd() *cobra.Command {
	var req client.CreateRoomRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pair or group room and print its share link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewHTTP(serverURL)
			if err != nil {
				return err
			}
			// The server stores the trimmed passcode; the link must carry
			// the same bytes or it fails the gate.
			req.Passcode = strings.TrimSpace(req.Passcode)
			created, err := c.CreateRoom(cmd.Context(), req)
			if err != nil {
				return err
			}

			// Group rooms share the passcode; pair rooms get a random secret
			// that only ever travels in the link fragment.
			link := c.Base + "/room/" + url.PathEscape(created.RoomID)
			secret := req.Passcode
			if created.Mode == models.ModeGroup {
				link += "?passcode=" + url.QueryEscape(req.Passcode)
			} else {
				if secret, err = crypto.GenerateSecret(); err != nil {
					return err
				}
			}
			link += "#k=" + url.QueryEscape(secret)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "room:   %s (%s)\n", created.RoomID, created.Mode)
			fmt.Fprintf(out, "secret: %s\n", secret)
			fmt.Fprintf(out, "link:   %s\n", link)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Mode, "mode", "pair", "room mode (pair or group)")
	cmd.Flags().StringVar(&req.Passcode, "passcode", "", "passcode for group rooms")
	cmd.Flags().StringVar(&req.PrivilegedSecret, "privileged-secret", "", "server master passcode for a permanent room")
	return cmd
}
