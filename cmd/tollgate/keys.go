package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/tollgate"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/spf13/cobra"
)

const keyEnv = "TOLLGATE_PRIVATE_KEY"

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		hexKey = os.Getenv(keyEnv)
	}
	if hexKey == "" {
		return nil, fmt.Errorf("no private key: pass --key or set %s", keyEnv)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func addressCmd() *cobra.Command {
	var hexKey string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the TRON address of a private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(hexKey)
			if err != nil {
				return err
			}
			addr := tron.FromPublicKey(&key.PublicKey)
			fmt.Fprintf(cmd.OutOrStdout(), "base58: %s\nhex:    %s\n", addr, addr.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&hexKey, "key", "", "hex private key (default $"+keyEnv+")")
	return cmd
}

func signCmd() *cobra.Command {
	var (
		hexKey string
		nonce  string
		appTag string
		legacy bool
	)

	cmd := &cobra.Command{
		Use:   "sign [message]",
		Short: "Sign a message or a login challenge",
		Long: `Sign an arbitrary message, or with --nonce the login challenge for the
key's own address. The signature is printed as hex.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(hexKey)
			if err != nil {
				return err
			}

			var message string
			switch {
			case nonce != "":
				message = core.ChallengeMessage(appTag, tron.FromPublicKey(&key.PublicKey).String(), nonce)
			case len(args) == 1:
				message = args[0]
			default:
				return errors.New("pass a message or --nonce")
			}

			var sig string
			if legacy {
				sig, err = tron.SignLegacyMessage(message, key)
			} else {
				sig, err = tron.SignMessage(message, key)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}

	cmd.Flags().StringVar(&hexKey, "key", "", "hex private key (default $"+keyEnv+")")
	cmd.Flags().StringVar(&nonce, "nonce", "", "sign the login challenge for this nonce")
	cmd.Flags().StringVar(&appTag, "app-tag", core.DefaultAppTag, "first line of the login challenge")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "use the legacy fixed-length message header")
	return cmd
}

func loginCmd() *cobra.Command {
	var (
		hexKey  string
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a running gateway and print the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(hexKey)
			if err != nil {
				return err
			}
			address := tron.FromPublicKey(&key.PublicKey).String()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			client := tollgate.NewClient(baseURL)
			issued, err := client.Login(ctx, address, func(message string) (string, error) {
				return tron.SignMessage(message, key)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "address:    %s\ntoken:      %s\nexpires in: %s\n",
				address, issued.Token, time.Duration(issued.ExpiresIn)*time.Second)
			return nil
		},
	}

	cmd.Flags().StringVar(&hexKey, "key", "", "hex private key (default $"+keyEnv+")")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8787", "gateway base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall request timeout")
	return cmd
}
