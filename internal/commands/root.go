package commands

import (
	"github.com/spf13/cobra"
)

var serverURL string

func Execute() error {
	root := &cobra.Command{
		Use:          "hush",
		Short:        "Ephemeral end-to-end encrypted chat rooms",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "hush server base URL")

	root.AddCommand(serveCmd(), secretCmd(), roomCmd(), chatCmd())
	return root.Execute()
}
