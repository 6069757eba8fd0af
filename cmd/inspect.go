package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/webhookx-io/mpack/codec"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Pretty-print the MessagePack values in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "could not read input")
			}
			r := codec.NewReaderBytes(data)
			for int(r.Position()) < len(data) {
				if err := dumpValue(cmd, r, 0); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func dumpValue(cmd *cobra.Command, r *codec.Reader, depth int) error {
	indent := strings.Repeat("  ", depth)
	t, err := r.PeekType()
	if err != nil {
		return err
	}
	switch t {
	case codec.TypeNil:
		if err := r.ReadNil(); err != nil {
			return err
		}
		cmd.Printf("%snil\n", indent)
	case codec.TypeBool:
		v, err := r.ReadBool()
		if err != nil {
			return err
		}
		cmd.Printf("%s%v\n", indent, v)
	case codec.TypeInt:
		v, err := r.ReadInt()
		if err != nil {
			return err
		}
		cmd.Printf("%s%d\n", indent, v)
	case codec.TypeFloat:
		v, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		cmd.Printf("%s%g\n", indent, v)
	case codec.TypeString:
		v, err := r.ReadString()
		if err != nil {
			return err
		}
		cmd.Printf("%s%q\n", indent, v)
	case codec.TypeBinary:
		v, err := r.ReadBytes()
		if err != nil {
			return err
		}
		cmd.Printf("%sbin(%d bytes)\n", indent, len(v))
	case codec.TypeArray:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return err
		}
		cmd.Printf("%sarray(%d)\n", indent, n)
		for i := 0; i < n; i++ {
			if err := dumpValue(cmd, r, depth+1); err != nil {
				return err
			}
		}
	case codec.TypeMap:
		n, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		cmd.Printf("%smap(%d)\n", indent, n)
		for i := 0; i < n; i++ {
			if err := dumpValue(cmd, r, depth+1); err != nil {
				return err
			}
			if err := dumpValue(cmd, r, depth+1); err != nil {
				return err
			}
		}
	case codec.TypeExtension:
		raw, _, err := r.ReadRaw()
		if err != nil {
			return err
		}
		cmd.Printf("%sext(%d bytes)\n", indent, len(raw))
	default:
		return fmt.Errorf("unexpected type %s", t)
	}
	return nil
}
