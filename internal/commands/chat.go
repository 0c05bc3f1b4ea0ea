package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pliu/hush/internal/client"
	"github.com/pliu/hush/internal/models"
	"github.com/spf13/cobra"
)

// chat <room-id>: join a room, print its history and relay stdin lines.
func chatCmd() *cobra.Command {
	var name, secret, passcode string
	cmd := &cobra.Command{
		Use:   "chat <room-id>",
		Short: "Join a room and chat from the terminal",
		Long: "Join a room and chat from the terminal. Lines typed are sent to the room;\n" +
			"/destroy destroys the room and /quit leaves.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = passcode
			}
			if secret == "" {
				return fmt.Errorf("room secret required (--secret, or --passcode for group rooms)")
			}
			return chat(cmd.Context(), args[0], name, secret, passcode, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name shown to the room")
	cmd.Flags().StringVar(&secret, "secret", "", "room secret (the #k= part of the link)")
	cmd.Flags().StringVar(&passcode, "passcode", "", "group room passcode")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// transcript prints each message once, whichever path decrypted it.
type transcript struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
}

func (t *transcript) print(lines ...client.Decrypted) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range lines {
		if t.seen[d.ID] {
			continue
		}
		t.seen[d.ID] = true
		sender := d.Sender
		if sender == "" {
			sender = "?"
		}
		ts := time.UnixMilli(d.Timestamp).Format("15:04:05")
		fmt.Fprintf(t.out, "[%s] %s: %s\n", ts, sender, d.Text)
	}
}

func (t *transcript) notice(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "* "+format+"\n", args...)
}

func chat(ctx context.Context, roomID, name, secret, passcode string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := client.NewHTTP(serverURL)
	if err != nil {
		return err
	}
	joined, err := c.Join(ctx, roomID, passcode)
	if err != nil {
		return err
	}
	session, err := client.NewSession(c, roomID, secret, name)
	if err != nil {
		return err
	}

	t := &transcript{out: out, seen: make(map[string]bool)}
	t.notice("joined %s as %s (%d present)", roomID, name, joined.Count)

	events, err := c.Subscribe(ctx, roomID)
	if err != nil {
		// Without the push channel the history below is all we get.
		t.notice("realtime unavailable: %v", err)
	}
	history, err := session.Resync(ctx)
	if err != nil {
		return err
	}
	t.print(history...)

	destroyed := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range events {
				switch ev.Type {
				case models.EventMessageAppended:
					var msg models.Message
					if err := json.Unmarshal(ev.Data, &msg); err != nil {
						continue
					}
					lines, err := session.Receive(ctx, msg)
					if err != nil {
						t.notice("resync failed: %v", err)
						continue
					}
					t.print(lines...)
				case models.EventParticipantCountChanged:
					var pc models.ParticipantCount
					if json.Unmarshal(ev.Data, &pc) == nil {
						t.notice("%d present", pc.Count)
					}
				case models.EventRoomDestroyed:
					t.notice("room destroyed")
					close(destroyed)
					cancel()
					return
				}
			}
		}()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-destroyed:
			return nil
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/quit":
				return nil
			case "/destroy":
				if err := c.Destroy(ctx, roomID); err != nil {
					t.notice("destroy: %v", err)
					continue
				}
				t.notice("room destroyed")
				return nil
			}
			d, err := session.Send(ctx, line)
			if err != nil {
				t.notice("send: %v", err)
				continue
			}
			t.print(d)
		}
	}
}
