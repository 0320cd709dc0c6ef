package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/builder"
	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/deploy"
	"github.com/xpander-ai/xpander-cli/internal/logger"
	"github.com/xpander-ai/xpander-cli/internal/logstream"
	"github.com/xpander-ai/xpander-cli/internal/resolve"
	"github.com/xpander-ai/xpander-cli/internal/tui"
)

// cacheDirName holds persisted agent listings under the config directory.
const cacheDirName = "cache"

// stagingEnv selects the staging platform when set to "true".
const stagingEnv = "IS_STG"

// deps holds shared dependencies for CLI commands.
type deps struct {
	config   *core.ConfigManager
	settings *core.Settings
	profiles *core.ProfileStore
	logger   *slog.Logger

	out, errOut io.Writer
	interactive bool
	closers     []func()
}

// newDeps creates shared dependencies. Called lazily by commands that need them.
func newDeps(cmd *cobra.Command) (*deps, error) {
	config, err := core.NewConfigManager()
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		settings.Log.Level = level
	}

	l, closeLog, err := logger.New(settings.Log)
	if err != nil {
		return nil, err
	}

	d := &deps{
		config:      config,
		settings:    settings,
		profiles:    core.NewProfileStore(config.ProfilesPath()),
		logger:      l,
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
		interactive: !nonInteractive(),
	}
	d.closers = append(d.closers, func() { _ = closeLog() })
	return d, nil
}

// close releases everything the commands opened.
func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// endpoints returns the platform URLs, honouring IS_STG and the URL
// overrides in the settings file.
func (d *deps) endpoints() api.Endpoints {
	ep := api.EndpointsFor(d.settings.API.Staging || os.Getenv(stagingEnv) == "true")
	if d.settings.API.BaseURL != "" {
		ep.API = d.settings.API.BaseURL
	}
	if d.settings.API.DeploymentManagerURL != "" {
		ep.DeploymentManager = d.settings.API.DeploymentManagerURL
	}
	return ep
}

// styled reports whether terminal styling is used for progress output.
func (d *deps) styled() bool {
	return d.interactive && isTerminal(d.errOut)
}

// controller builds the deployment controller with its backend factory.
func (d *deps) controller() *deploy.Controller {
	opts := []deploy.Option{
		deploy.WithOutput(d.out),
		deploy.WithLogger(d.logger),
	}
	if d.interactive {
		opts = append(opts, deploy.WithPrompter(tui.NewPrompter(os.Stdin, d.errOut)))
	}
	return deploy.NewController(d.profiles, d.backend, opts...)
}

// backend wires the remote services for one credential pair.
func (d *deps) backend(creds core.Credentials) (*deploy.Backend, error) {
	client := api.NewClient(creds, d.endpoints(), api.WithLogger(d.logger))

	cache, err := resolve.NewCache(d.settings.Resolver.CacheTTL,
		resolve.WithDir(filepath.Join(d.config.ConfigDir(), cacheDirName)),
	)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, cache.Close)

	var chooser resolve.Chooser = resolve.NoPrompt{}
	if d.interactive {
		chooser = tui.NewPrompter(os.Stdin, d.errOut)
	}

	progress := tui.NewUploadProgress(d.errOut, d.styled())

	return &deploy.Backend{
		Agents: client,
		Resolver: resolve.New(client, cacheScope(creds), cache, chooser,
			resolve.WithOutput(d.out),
			resolve.WithLogger(d.logger),
		),
		Builder: builder.New(builder.NewDockerCLI(d.logger),
			builder.WithOutput(d.out),
			builder.WithLogger(d.logger),
			builder.WithSettings(d.settings.Build),
		),
		Uploader: &progressUploader{
			uploader: api.NewUploader(client, api.WithProgress(progress.Update)),
			progress: progress,
		},
		Logs: logstream.New(client,
			logstream.WithOutput(d.out),
			logstream.WithInfo(d.errOut),
			logstream.WithLogger(d.logger),
			logstream.WithIndicator(tui.NewSpinner(d.errOut, d.styled())),
		),
	}, nil
}

// cacheScope keys listings by organization and key, so a rejected key is
// never answered from another key's listing. The cache only stores a hash.
func cacheScope(creds core.Credentials) string {
	return creds.OrganizationID + "\x00" + creds.APIKey
}

// progressUploader finishes the progress display once an upload returns.
type progressUploader struct {
	uploader *api.Uploader
	progress *tui.UploadProgress
}

func (u *progressUploader) Upload(ctx context.Context, path, agentID string) (*api.UploadResult, error) {
	defer u.progress.Done()
	return u.uploader.Upload(ctx, path, agentID)
}
