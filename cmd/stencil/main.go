// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/z5labs/stencil"
	"github.com/z5labs/stencil/app"
	"github.com/z5labs/stencil/auth"
	"github.com/z5labs/stencil/config"
	"github.com/z5labs/stencil/service"
)

// EnvPrefix is prepended to every environment variable which overrides
// configuration, e.g. STENCIL_HTTP_PORT.
const EnvPrefix = "STENCIL_"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

type flags struct {
	host       string
	port       uint
	certFile   string
	keyFile    string
	configFile string
}

// sources returns every config source in increasing precedence.
func (f *flags) sources(cmd *cobra.Command) []config.Source {
	srcs := []config.Source{stencil.DefaultConfig()}
	if f.configFile != "" {
		srcs = append(srcs, config.FromYaml(config.RenderTextTemplate(
			config.NewFileReader(os.DirFS(filepath.Dir(f.configFile)), filepath.Base(f.configFile)),
		)))
	}
	srcs = append(srcs, config.FromEnv(EnvPrefix))

	overrides := make(map[string]any)
	if cmd.Flags().Changed("host") {
		overrides["host"] = f.host
	}
	if cmd.Flags().Changed("port") {
		overrides["port"] = f.port
	}
	tls := make(map[string]any)
	if cmd.Flags().Changed("ssl-certfile") {
		tls["certFile"] = f.certFile
	}
	if cmd.Flags().Changed("ssl-keyfile") {
		tls["keyFile"] = f.keyFile
	}
	if len(tls) > 0 {
		overrides["tls"] = tls
	}
	if len(overrides) > 0 {
		srcs = append(srcs, config.Map{"http": overrides})
	}
	return srcs
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:          "stencil",
		Short:        "Render templates over HTTP",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			builder := stencil.AppBuilderFunc[service.Config](func(ctx context.Context, cfg service.Config) (stencil.App, error) {
				a, err := service.Build(ctx, cfg, service.LogOutput(cmd.ErrOrStderr()))
				if err != nil {
					return nil, err
				}
				return app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM), nil
			})
			return stencil.Run(cmd.Context(), builder, f.sources(cmd)...)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "YAML config file, rendered as a text/template")
	cmd.Flags().StringVar(&f.host, "host", "127.0.0.1", "address to listen on")
	cmd.Flags().UintVar(&f.port, "port", 2999, "port to listen on, 0 picks a free port")
	cmd.Flags().StringVar(&f.certFile, "ssl-certfile", "", "PEM encoded TLS certificate")
	cmd.Flags().StringVar(&f.keyFile, "ssl-keyfile", "", "PEM encoded TLS private key")

	cmd.AddCommand(newTokenCmd(f))
	return cmd
}

func newTokenCmd(f *flags) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <template>",
		Short: "Issue a bearer token for a single template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			builder := stencil.AppBuilderFunc[service.Config](func(ctx context.Context, cfg service.Config) (stencil.App, error) {
				if cfg.Auth.Secret == "" {
					return nil, service.ErrMissingSecret
				}
				v := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.Audience)
				return app.Func(func(context.Context) error {
					token, err := v.Sign(args[0], ttl)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
					return err
				}), nil
			})
			return stencil.Run(cmd.Context(), builder, f.sources(cmd)...)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the token is valid for")
	return cmd
}
