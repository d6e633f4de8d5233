package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphquery/pkg/batchfile"
	"github.com/dd0wney/cluso-graphquery/pkg/transport"
	"github.com/dd0wney/cluso-graphquery/pkg/wire"
)

// batchClient is satisfied by both transport clients
type batchClient interface {
	Do(ctx context.Context, b *wire.Batch) (*wire.ResponseBatch, error)
	Close() error
}

func runExec(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	nngAddr, _ := cmd.Flags().GetString("nng")
	compress, _ := cmd.Flags().GetBool("compress")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	batch, err := batchfile.Load(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	framer := wire.NewFramer(0, compress)
	var client batchClient
	if nngAddr != "" {
		client, err = transport.DialNNG(nngAddr, framer)
	} else {
		client, err = transport.Dial(ctx, addr, framer)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Do(ctx, batch)
	if err != nil {
		return err
	}
	out, err := batchfile.Render(resp)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}

	for _, g := range resp.Groups {
		if g.Status == wire.StatusError {
			return fmt.Errorf("transaction %s aborted: %s", resp.TxID, g.Error)
		}
	}
	return nil
}
