// Package admincli implements records_admin, the operator tool for tokens, service keys,
// schema migrations, the notification worker and the legacy to v2 storage cutover.
package admincli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SscSPs/client_records_app/internal/core/domain"
	portsrepo "github.com/SscSPs/client_records_app/internal/core/ports/repositories"
	"github.com/SscSPs/client_records_app/internal/core/services"
	"github.com/SscSPs/client_records_app/internal/platform/config"
	"github.com/SscSPs/client_records_app/internal/utils"
	"github.com/spf13/cobra"
)

// Deps are the side-effecting collaborators of the admin commands.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	Migrate    func(cfg *config.Config, logger *slog.Logger) error
	Logger     *slog.Logger

	// OpenRepositories returns both representations and a func that releases them.
	OpenRepositories func(ctx context.Context, cfg *config.Config) (portsrepo.RepositoryProvider, func(), error)

	// RunWorker consumes queued payment events until ctx is cancelled.
	RunWorker func(ctx context.Context, cfg *config.Config, logger *slog.Logger) error
}

// NewRootCmd builds the records_admin command tree.
func NewRootCmd(deps Deps) *cobra.Command {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	rootCmd := &cobra.Command{
		Use:           "records_admin",
		Short:         "Operator tooling for the client records backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(tokenCmd(deps))
	rootCmd.AddCommand(serviceKeyCmd())
	rootCmd.AddCommand(migrateCmd(deps))
	rootCmd.AddCommand(representationsCmd(deps))
	rootCmd.AddCommand(workerCmd(deps))
	return rootCmd
}

func tokenCmd(deps Deps) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			token, err := utils.GenerateJWT(subject, cfg.JWTSecret, ttl, cfg.JWTIssuer)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "User id carried in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func serviceKeyCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "service-key",
		Short: "Generate a service key and the SERVICE_API_KEYS entry for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := utils.NewServiceKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:    %s\n", key)
			_, err = fmt.Fprintf(out, "config: %s=%s\n", name, hash)
			return err
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Integration name, e.g. telegram_bot")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func migrateCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("PGSQL_URL is required")
			}
			return deps.Migrate(cfg, deps.Logger)
		},
	}
}

func workerCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued payment events to NOTIFY_WORKER_BACKEND",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Notify.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is required")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return deps.RunWorker(ctx, cfg, deps.Logger)
		},
	}
}

func representationsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "representations",
		Short: "Inspect and reconcile the legacy and v2 record stores",
	}
	cmd.AddCommand(statusCmd(deps))
	cmd.AddCommand(copyCmd(deps))
	return cmd
}

func statusCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Compare the legacy and v2 representations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepositories(cmd.Context(), deps, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
				report, err := services.CompareRepresentations(ctx, repos.LegacyRecordsRepo, repos.V2RecordsRepo)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func copyCmd(deps Deps) *cobra.Command {
	var (
		from  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Overwrite one representation with the other",
		Long: `Overwrite one representation with the other, keeping the collection stamp.

Use it to seed v2 before switching RECORDS_MIGRATION_MODE, or to repair the legacy mirror.
The copy refuses to overwrite a newer target unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := domain.RecordsSource(from)
			if source != domain.SourceLegacy && source != domain.SourceV2 {
				return fmt.Errorf("--from must be %q or %q", domain.SourceLegacy, domain.SourceV2)
			}
			return withRepositories(cmd.Context(), deps, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
				src, dst := repos.LegacyRecordsRepo, repos.V2RecordsRepo
				if source == domain.SourceV2 {
					src, dst = dst, src
				}
				summary, err := services.CopyRepresentation(ctx, src, dst, force)
				if err != nil {
					return err
				}
				deps.Logger.Info("Copied records representation",
					slog.String("from", string(src.Source())),
					slog.String("to", string(dst.Source())),
					slog.Int("records", summary.Records))
				return writeJSON(cmd.OutOrStdout(), summary)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", string(domain.SourceLegacy), "Representation to copy from (legacy or v2)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite even if the target is newer")
	return cmd
}

func withRepositories(ctx context.Context, deps Deps, fn func(context.Context, portsrepo.RepositoryProvider) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	repos, release, err := deps.OpenRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()
	if repos.LegacyRecordsRepo == nil || repos.V2RecordsRepo == nil {
		return fmt.Errorf("both records representations must be configured")
	}
	return fn(ctx, repos)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
