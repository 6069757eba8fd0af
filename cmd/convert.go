package cmd

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

func newConvertCmd() *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert MessagePack to JSON (or back with --reverse)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "could not read input")
			}

			if reverse {
				var v interface{}
				if err := json.Unmarshal(data, &v); err != nil {
					return errors.Wrap(err, "invalid JSON")
				}
				out, err := msgpack.Marshal(v)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			var v interface{}
			if err := msgpack.Unmarshal(data, &v); err != nil {
				return errors.Wrap(err, "invalid MessagePack")
			}
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reverse, "reverse", false, "Convert JSON input to MessagePack.")
	return cmd
}
