package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/spf13/cobra"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
	auth "bounty-backend/storage/auth"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseOptional(raw string) (*pda.Address, error) {
	if raw == "" {
		return nil, nil
	}
	addr, err := pda.ParseAddress(raw)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func newDeriveCmd() *cobra.Command {
	var creator, taskID, participant, mint, program string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the addresses of a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := pda.ParseAddress(creator)
			if err != nil {
				return fmt.Errorf("--creator: %w", err)
			}
			p, err := parseOptional(participant)
			if err != nil {
				return fmt.Errorf("--participant: %w", err)
			}
			m, err := parseOptional(mint)
			if err != nil {
				return fmt.Errorf("--mint: %w", err)
			}
			d := bounty.Deriver{Program: bounty.DefaultProgramID}
			if program != "" {
				if d.Program, err = pda.ParseAddress(program); err != nil {
					return fmt.Errorf("--program: %w", err)
				}
			}
			addrs, err := d.Addresses(c, taskID, p, m)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), addrs)
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "creator address")
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id")
	cmd.Flags().StringVar(&participant, "participant", "", "participant address")
	cmd.Flags().StringVar(&mint, "mint", "", "reward mint address")
	cmd.Flags().StringVar(&program, "program", "", "program id (default "+bounty.DefaultProgramID.String()+")")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

// keyFile is the keygen output and the sign input.
type keyFile struct {
	Address    pda.Address `json:"address"`
	PrivateKey string      `json:"private_key"` // base58 ed25519 seed||public key
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 signer key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(nil)
			if err != nil {
				return err
			}
			addr, err := pda.AddressFromPublicKey(pub)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keyFile{Address: addr, PrivateKey: base58.Encode(priv)})
		},
	}
}

func loadKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	key := base58.Decode(kf.PrivateKey)
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %s: private key has %d bytes", path, len(key))
	}
	return ed25519.PrivateKey(key), nil
}

func newSignCmd() *cobra.Command {
	var keyPath, nonce, payload string
	cmd := &cobra.Command{
		Use:   "sign [op]",
		Short: "Sign an operation payload into a request envelope",
		Long:  "Reads the JSON payload from --payload or stdin and prints the envelope to POST to /v1/tx/{op}.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := bounty.Op(args[0])
			if !op.Valid() {
				return fmt.Errorf("unknown operation %q", op)
			}
			key, err := loadKey(keyPath)
			if err != nil {
				return err
			}
			if payload == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				payload = strings.TrimSpace(string(raw))
			}
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload is not valid JSON")
			}
			env, err := auth.Sign(key, op, nonce, json.RawMessage(payload))
			if err != nil {
				return err
			}
			// Compact: indenting would rewrite the signed payload bytes.
			return json.NewEncoder(cmd.OutOrStdout()).Encode(env)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "key file written by keygen")
	cmd.Flags().StringVar(&nonce, "nonce", "", "nonce from POST /v1/challenges")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload (default: stdin)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}

func newUnitsCmd() *cobra.Command {
	var decimals uint8
	cmd := &cobra.Command{
		Use:   "units [amount]",
		Short: "Convert a decimal token amount to base units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := bounty.ParseAmount(args[0], decimals)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), units)
			return err
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "mint decimals")
	return cmd
}
