package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stacklok/vkernel/pkg/engine"
	"github.com/stacklok/vkernel/pkg/kernel"
	"github.com/stacklok/vkernel/pkg/kernelconfig"
	"github.com/stacklok/vkernel/pkg/logger"
	"github.com/stacklok/vkernel/pkg/modulerepo"
	"github.com/stacklok/vkernel/pkg/services"
	"github.com/stacklok/vkernel/pkg/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build a kernel, bootstrap the root session, and block until signalled",
		Long: `serve loads the kernel's bootstrap configuration (root entitlements,
root public key, shared-memory arena size, module repository directory), builds
a wazero sandbox engine over it, and runs until interrupted. No guest module
is started by serve itself; use "vkernel catalogue" to inspect what a
bootstrapped kernel exposes and a higher-level orchestrator to start guests
against it.`,
		RunE: runServe,
	}

	cmd.Flags().Uint64("arena_bytes", 0, "Shared-memory arena size in bytes (0 keeps the kernelconfig default)")
	cmd.Flags().String("module_repo_dir", "", "Directory process::start resolves guest module bytes from")
	cmd.Flags().StringSlice("root_entitlements", nil, "Capabilities granted to the bootstrap root session")
	cmd.Flags().String("root_pubkey", "", "Hex-encoded 32-byte public key for the bootstrap root session")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := kernelconfig.Load(cmd.Flags())
	if err != nil {
		return err
	}

	repo := modulerepo.NewFilesystemRepository(cfg.ModuleRepoDir)
	process := engine.NewUnboundSandboxProcess(repo)

	k, err := kernel.Build(kernel.Config{
		Modules: repo,
		Process: process,
		Arena:   services.NewSharedMemoryDriverWithCapacity(cfg.ArenaBytes),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.NewEngine(ctx, k)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := eng.Close(ctx); cerr != nil {
			logger.Errorw("error closing sandbox engine", "error", cerr)
		}
	}()
	process.BindEngine(eng)

	root := session.Bootstrap(cfg.RootEntitlements, cfg.RootPubkey)
	logger.Infow("vkernel bootstrapped",
		"module_repo_dir", cfg.ModuleRepoDir,
		"arena_bytes", cfg.ArenaBytes,
		"root_entitlements", len(cfg.RootEntitlements),
		"root_pubkey_set", root.Pubkey() != [32]byte{},
	)
	logger.Infow("vkernel serving, press ctrl-c to stop")

	<-ctx.Done()
	logger.Infow("vkernel shutting down")
	return nil
}
