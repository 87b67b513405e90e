// Copyright (C) 2020 The watchexec-go Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command watchexec runs a command, re-running (or restarting) it whenever
// one of its watched paths changes.
//
// Usage:
//
//	watchexec --watch src -- go test ./...
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/watchexec/watchexec/internal/watchexec"
	"github.com/watchexec/watchexec/internal/watchexec/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the single cobra root command SPEC_FULL.md's external
// interfaces section describes: flags mirror engine Config fields directly
// rather than a sub-command-per-target model, grounded on
// cmd/boone/root/root.go's flag-binding style but re-targeted to
// watchexec's own flag set (the internal/cage/cli/handler framework
// root.go builds on is not part of this module: see DESIGN.md).
func newRootCmd() *cobra.Command {
	var (
		watch         []string
		debounce      time.Duration
		restartSignal string
		restart       bool
		useShell      bool
		noShell       bool
		configFile    string
		noEnvironment bool
		stopTimeout   time.Duration
		keyboard      bool
		liveUI        bool
		logFile       string
	)

	cmd := &cobra.Command{
		Use:   "watchexec [flags] -- command [args...]",
		Short: "Run a command, re-running it when watched paths change",
		Example: strings.Join([]string{
			"watchexec --watch src -- go test ./...",
			"watchexec --restart --watch . -- go run .",
		}, "\n"),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := watchexec.ReadFile(configFile)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				cfg.Command = args
			}
			if len(watch) > 0 {
				cfg.Paths = watch
			}
			if cmd.Flags().Changed("debounce") {
				cfg.Debounce = debounce
			}
			if cmd.Flags().Changed("signal") {
				cfg.RestartSignal = restartSignal
			}
			if restart {
				cfg.OnBusyUpdate = watchexec.OnBusyRestart
			}
			if useShell {
				cfg.UseShell = true
			}
			if noShell {
				cfg.UseShell = false
			}
			if cmd.Flags().Changed("stop-timeout") {
				cfg.StopTimeout = stopTimeout
			}
			cfg.NoEnvironment = noEnvironment

			cfg, err = watchexec.Finalize(cfg)
			if err != nil {
				return err
			}

			// The live status display owns the terminal, so its logger can't
			// also write there: default it to a file alongside the command's
			// own output instead of fighting the display for the screen.
			if liveUI && logFile == "" {
				logFile = "watchexec.log"
			}

			zcfg := zap.NewProductionConfig()
			if logFile != "" {
				zcfg.OutputPaths = []string{logFile}
				zcfg.ErrorOutputPaths = []string{logFile}
			}
			log, err := zcfg.Build()
			if err != nil {
				return err
			}
			defer log.Sync() // nolint:errcheck

			we := watchexec.New(cfg, log)
			we.KeyboardEnabled = keyboard

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if !liveUI {
				return we.Run(ctx)
			}

			display := ui.New(log, we.Jobs, 0)
			display.Init()

			runErrCh := make(chan error, 1)
			go func() { runErrCh <- we.Run(ctx) }()

			go func() {
				<-display.ExitCh()
				cancel()
			}()

			displayErr := display.Start()
			cancel()

			if runErr := <-runErrCh; runErr != nil {
				return runErr
			}
			return displayErr
		},
	}

	cmd.Flags().StringArrayVarP(&watch, "watch", "w", nil, "path to watch (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "throttle window before running the command")
	cmd.Flags().StringVar(&restartSignal, "signal", "SIGTERM", "signal sent to a running command on restart/quit")
	cmd.Flags().BoolVar(&restart, "restart", false, "restart the running command on every change instead of queuing a run")
	cmd.Flags().BoolVar(&useShell, "shell", false, "run the command through a shell")
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "run the command directly, overriding --config's shell setting")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "viper-readable config file (yaml/json/toml/ini)")
	cmd.Flags().BoolVar(&noEnvironment, "no-environment", false, "do not inject WATCHEXEC_* variables into the command's environment")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "grace period before force-killing on restart/quit")
	cmd.Flags().BoolVar(&keyboard, "keyboard", false, "read stdin for keyboard shortcuts")
	cmd.Flags().BoolVar(&liveUI, "ui", false, "show a live status display of supervised jobs instead of plain logs")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr (defaults to watchexec.log when --ui is set)")

	return cmd
}
