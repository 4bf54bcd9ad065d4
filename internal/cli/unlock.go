package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dikeworks/floxrun/internal/engine"
)

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Force-release the engine lock",
		Long: `Force-release the machine-wide engine lock.

The lock normally clears itself; a stale lock from a dead process is
also reclaimed automatically. Unlock is for the rare case where a lock
survives with a recycled PID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := engine.ReadLock(engine.DefaultLockPath)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("No engine lock found.")
					return nil
				}
				return fmt.Errorf("read lock: %w", err)
			}

			engine.Release(engine.DefaultLockPath)
			fmt.Printf("Removed engine lock (was PID %d, run %s, since %s)\n",
				info.PID, info.RunDir, info.StartedAt.Format(time.RFC3339))
			return nil
		},
	}
}
