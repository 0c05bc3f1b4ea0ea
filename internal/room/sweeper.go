package room

import (
	"context"
	"log"
	"time"

	"github.com/pliu/hush/internal/store"
)

// Sweep purges expired rows every interval until ctx is done. Reads already
// treat expired rows as absent; this only reclaims space.
func Sweep(ctx context.Context, st store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.PurgeExpired(ctx, now)
			if err != nil {
				log.Printf("Error purging expired rooms: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("purged %d expired rooms", n)
			}
		}
	}
}
