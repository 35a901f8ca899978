package main

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/content"
	"github.com/PravicaInc/walletify-go/pkg/sdk"
	"github.com/PravicaInc/walletify-go/pkg/session"
	"github.com/PravicaInc/walletify-go/pkg/storage"
	"github.com/PravicaInc/walletify-go/pkg/transactions"
)

// cli holds the flags shared by every command.
type cli struct {
	configPath string
	appDomain  string
	hubURL     string
	sessionDir string
	debug      bool
}

// open loads the configuration and starts the SDK. Flags win over the file
// and the environment.
func (c *cli) open() (sdk.Walletify, error) {
	if c.appDomain != "" {
		os.Setenv(config.EnvPrefix+"_APP_DOMAIN", c.appDomain)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.hubURL != "" {
		cfg.HubURL = c.hubURL
	}
	if c.debug {
		cfg.Debug = true
	}
	switch {
	case c.sessionDir != "":
		cfg.SessionDir = c.sessionDir
	case cfg.SessionDir == "":
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.SessionDir = filepath.Join(home, ".walletify", "session")
	}
	return sdk.NewSDK(cfg)
}

// withSDK adapts a command body that needs an open SDK.
func (c *cli) withSDK(fn func(cmd *cobra.Command, w sdk.Walletify, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		w, err := c.open()
		if err != nil {
			return err
		}
		defer w.Close()
		return fn(cmd, w, args)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:           "walletify",
		Short:         "Sign users in with the wallet and manage their hub files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&c.appDomain, "app-domain", "", "app origin, e.g. https://app.example.com")
	rootCmd.PersistentFlags().StringVar(&c.hubURL, "hub-url", "", "default storage hub")
	rootCmd.PersistentFlags().StringVar(&c.sessionDir, "session-dir", "", "session store directory")
	rootCmd.PersistentFlags().BoolVarP(&c.debug, "debug", "d", false, "debug logging")

	rootCmd.AddCommand(newAuthURLCommand(c))
	rootCmd.AddCommand(newSignInCommand(c))
	rootCmd.AddCommand(newSignOutCommand(c))
	rootCmd.AddCommand(newPutCommand(c))
	rootCmd.AddCommand(newGetCommand(c))
	rootCmd.AddCommand(newRemoveCommand(c))
	rootCmd.AddCommand(newListCommand(c))
	rootCmd.AddCommand(newSTXTransferCommand(c))
	return rootCmd
}

func newAuthURLCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the wallet sign-in link",
		Args:  cobra.NoArgs,
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, _ []string) error {
			link, err := w.Session().GenerateAuthURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		}),
	}
}

func newSignInCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-in <authResponse|redirect-url>",
		Short: "Complete sign-in with the wallet's auth response",
		Args:  cobra.ExactArgs(1),
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, args []string) error {
			tok := args[0]
			if strings.Contains(tok, "authResponse=") {
				var err error
				if tok, err = session.AuthResponseFromURL(tok); err != nil {
					return err
				}
			}
			user, err := w.Session().HandlePendingSignIn(cmd.Context(), tok)
			if err != nil {
				return err
			}
			name := user.Username
			if name == "" {
				name = user.IdentityAddress
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (hub %s)\n", name, user.HubURL)
			return nil
		}),
	}
}

func newSignOutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-out",
		Short: "Forget the signed-in user",
		Args:  cobra.NoArgs,
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, _ []string) error {
			return w.Session().SignUserOut(cmd.Context())
		}),
	}
}

func newPutCommand(c *cli) *cobra.Command {
	var (
		plain       bool
		sign        bool
		contentType string
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "put <path> <file|->",
		Short: "Upload a local file (or stdin) to the hub",
		Args:  cobra.ExactArgs(2),
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, args []string) error {
			var data any
			if args[1] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				data = b
			} else {
				blob, err := content.FileBlob(args[1], contentType)
				if err != nil {
					return err
				}
				data = blob
			}

			opts := []storage.PutFileOption{storage.WithEncrypt(!plain), storage.WithSign(sign)}
			if contentType != "" {
				opts = append(opts, storage.WithContentType(contentType))
			}
			if force {
				opts = append(opts, storage.WithoutEtagCheck())
			}
			out, err := w.Storage().PutFile(cmd.Context(), args[0], data, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.PublicURL)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "upload without encryption")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign with the app key")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type of the upload")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite without the etag check")
	return cmd
}

func newGetCommand(c *cli) *cobra.Command {
	var (
		plain    bool
		verify   bool
		username string
		app      string
	)
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Download a file and write it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, args []string) error {
			opts := []storage.GetFileOption{storage.WithDecrypt(!plain), storage.WithVerify(verify)}
			if username != "" {
				opts = append(opts, storage.FromUser(username, app, ""))
			}
			fc, err := w.Storage().GetFile(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(fc.Data)
			return err
		}),
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "the file is not encrypted")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the file signature")
	cmd.Flags().StringVar(&username, "user", "", "read another user's file")
	cmd.Flags().StringVar(&app, "app", "", "app bucket of the other user")
	return cmd
}

func newRemoveCommand(c *cli) *cobra.Command {
	var (
		signed bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file from the hub",
		Args:  cobra.ExactArgs(1),
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, args []string) error {
			var opts []storage.DeleteFileOption
			if signed {
				opts = append(opts, storage.WasSigned())
			}
			if force {
				opts = append(opts, storage.DeleteWithoutEtagCheck())
			}
			return w.Storage().DeleteFile(cmd.Context(), args[0], opts...)
		}),
	}
	cmd.Flags().BoolVar(&signed, "signed", false, "also delete the detached signature")
	cmd.Flags().BoolVar(&force, "force", false, "delete without the etag check")
	return cmd
}

func newListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the files in the app bucket",
		Args:  cobra.NoArgs,
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, _ []string) error {
			out := cmd.OutOrStdout()
			_, err := w.Storage().ListFiles(cmd.Context(), func(name string) bool {
				fmt.Fprintln(out, name)
				return true
			})
			return err
		}),
	}
}

func newSTXTransferCommand(c *cli) *cobra.Command {
	var memo, fee string
	cmd := &cobra.Command{
		Use:   "stx-transfer-url <recipient> <micro-stx>",
		Short: "Print a wallet link requesting an STX transfer",
		Args:  cobra.ExactArgs(2),
		RunE: c.withSDK(func(cmd *cobra.Command, w sdk.Walletify, args []string) error {
			amount, ok := new(big.Int).SetString(args[1], 10)
			if !ok || amount.Sign() < 0 {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			link, err := w.Session().MakeSTXTransferURL(cmd.Context(), transactions.STXTransferOptions{
				TxOptions: transactions.TxOptions{Fee: fee},
				Recipient: args[0],
				Amount:    amount,
				Memo:      memo,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		}),
	}
	cmd.Flags().StringVar(&memo, "memo", "", "transfer memo")
	cmd.Flags().StringVar(&fee, "fee", "", "fee in micro-STX")
	return cmd
}
