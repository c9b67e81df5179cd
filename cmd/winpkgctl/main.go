/*
 * Copyright (c) 2026, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// winpkgctl is a thin, flag-based CLI that wires together the whole
// winpkg-core stack: configuration, logging, metrics, the policy gate,
// settings streams, the source registry, the search aggregator and the
// manifest comparator. It has no interactive workflow or progress UI;
// it exists to give the library a runnable entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/wso2/winpkg-core/pkg/aggregator"
	"github.com/wso2/winpkg-core/pkg/certstore"
	"github.com/wso2/winpkg-core/pkg/comparator"
	"github.com/wso2/winpkg-core/pkg/config"
	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/encryption"
	"github.com/wso2/winpkg-core/pkg/encryption/aesgcm"
	"github.com/wso2/winpkg-core/pkg/logger"
	"github.com/wso2/winpkg-core/pkg/metrics"
	"github.com/wso2/winpkg-core/pkg/models"
	"github.com/wso2/winpkg-core/pkg/policygate"
	"github.com/wso2/winpkg-core/pkg/settings"
	"github.com/wso2/winpkg-core/pkg/sourceregistry"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional, defaults applied otherwise)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	metrics.SetEnabled(cfg.Metrics.Enabled)
	metrics.Init()

	log := logger.NewLogger(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Info("starting winpkgctl",
		slog.String("version", Version),
		slog.String("git_commit", GitCommit),
		slog.String("command", args[0]),
		slog.String("state_root", cfg.StateRoot),
	)

	var metricsServer *metrics.Server
	var metricsCancel context.CancelFunc
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(&cfg.Metrics, log)
		if err := metricsServer.Start(); err != nil {
			log.Error("metrics server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
		var metricsCtx context.Context
		metricsCtx, metricsCancel = context.WithCancel(context.Background())
		go metrics.StartMemoryMetricsUpdater(metricsCtx, 15*time.Second)
		defer func() {
			metricsCancel()
			_ = metricsServer.Stop(context.Background())
		}()
	}

	env := mustBuildEnvironment(cfg, log)

	var cmdErr error
	switch args[0] {
	case "search":
		cmdErr = runSearch(env, args[1:])
	case "source":
		cmdErr = runSource(env, args[1:])
	case "resolve":
		cmdErr = runResolve(env, args[1:])
	case "policy":
		cmdErr = runPolicy(env, args[1:])
	default:
		usage()
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [-config <path>] <command> [args]

Commands:
  search <query>                 search every configured source
  source list                    list configured sources
  source add <name> <type> <arg> add a user source
  source update <name>           refresh a source's catalog
  source remove <name>           remove a user source
  resolve <manifest.yaml>        select the best installer from a manifest file
  policy show <policy-name>      print a toggle policy's evaluated state
`, os.Args[0])
}

// environment bundles the process-wide components every subcommand
// needs. Building it here, once, keeps each subcommand focused on its
// own verb instead of repeating wiring.
type environment struct {
	cfg      *config.Config
	log      *slog.Logger
	gate     *policygate.Gate
	settings *settings.Manager
	registry *sourceregistry.Registry
}

func mustBuildEnvironment(cfg *config.Config, log *slog.Logger) *environment {
	if err := os.MkdirAll(cfg.StateRoot, 0o755); err != nil {
		log.Error("failed to create state root", slog.Any("error", err))
		os.Exit(1)
	}

	policyStore := policygate.NewMapStore()
	gate := policygate.New(policyStore, log)

	var encryptionManager *encryption.ProviderManager
	if len(cfg.Encryption.Keys) > 0 {
		keyConfigs := make([]aesgcm.KeyConfig, len(cfg.Encryption.Keys))
		for i, k := range cfg.Encryption.Keys {
			keyConfigs[i] = aesgcm.KeyConfig{Version: k.Version, FilePath: k.FilePath}
		}
		provider, err := aesgcm.NewAESGCMProvider(keyConfigs, log)
		if err != nil {
			log.Error("failed to initialise encryption provider", slog.Any("error", err))
			os.Exit(1)
		}
		encryptionManager, err = encryption.NewProviderManager([]encryption.EncryptionProvider{provider}, log)
		if err != nil {
			log.Error("failed to initialise encryption provider manager", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dirs := settings.DefaultDirectories(cfg.StateRoot)
	settingsManager := settings.NewManager(dirs, encryptionManager)

	trustStore := certstore.NewTrustStore(log, certstore.NewMemoryRecordStore(), filepath.Join(cfg.StateRoot, "certs"), "")

	restClient := &http.Client{Timeout: cfg.Sources.RestTimeout}
	preIndexedClient := &http.Client{Timeout: cfg.Sources.PreIndexedTimeout}

	registry := sourceregistry.New(sourceregistry.Options{
		StateRoot:  filepath.Join(cfg.StateRoot, "sources"),
		Predefined: sourceregistry.DefaultSources(),
	}, settingsManager, gate, log)
	registry.RegisterFactory("Microsoft.Rest", sourceregistry.NewRestFactory(restClient, log))
	registry.RegisterFactory("Microsoft.PreIndexed", sourceregistry.NewPreIndexedFactory(trustStore, preIndexedClient, log))

	return &environment{cfg: cfg, log: log, gate: gate, settings: settingsManager, registry: registry}
}

func runSearch(env *environment, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	sourceName := fs.String("source", "", "restrict the search to one source name")
	limit := fs.Int("limit", 0, "maximum number of results (0 = unlimited)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: search [-source name] [-limit n] <query>")
	}
	query := fs.Arg(0)

	catalog, err := env.registry.Open(*sourceName)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer catalog.Close()

	request := models.SearchRequest{
		Query:          &models.Query{Text: query, MatchType: core.MatchTypeSubstring},
		MaximumResults: *limit,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := aggregator.Search(ctx, []aggregator.Searcher{catalog}, request)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, m := range result.Matches {
		fmt.Printf("%s\t%s\t%s\t%s\n", m.Package.Id, m.Package.Name, m.SourceName, m.Criteria.MatchType)
	}
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "(results truncated)")
	}
	return nil
}

func runSource(env *environment, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: source <list|add|update|remove> ...")
	}

	switch args[0] {
	case "list":
		sources, err := env.registry.List()
		if err != nil {
			return err
		}
		for _, s := range sources {
			fmt.Printf("%s\t%s\t%s\t%s\n", s.Name, s.Type, s.Arg, s.Origin)
		}
		return nil

	case "add":
		if len(args) != 4 {
			return fmt.Errorf("usage: source add <name> <type> <arg>")
		}
		details := models.SourceDetails{
			Name:       args[1],
			Type:       args[2],
			Arg:        args[3],
			Identifier: args[1],
			Origin:     models.OriginUser,
		}
		return env.registry.Add(details, progressLogger(env.log))

	case "update":
		if len(args) != 2 {
			return fmt.Errorf("usage: source update <name>")
		}
		changed, err := env.registry.Update(args[1], progressLogger(env.log))
		if err != nil {
			return err
		}
		fmt.Printf("updated=%v\n", changed)
		return nil

	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: source remove <name>")
		}
		return env.registry.Remove(args[1], progressLogger(env.log))

	default:
		return fmt.Errorf("unknown source subcommand %q", args[0])
	}
}

func progressLogger(log *slog.Logger) sourceregistry.ProgressFunc {
	return func(message string) {
		log.Info("source progress", slog.String("message", message))
	}
}

func runResolve(env *environment, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: resolve <manifest.yaml>")
	}

	manifest, err := loadManifestFile(args[0])
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	opts := comparator.Options{
		AllowedArchitectures: core.SystemApplicableArchitectures(),
		CurrentMarket:        "US",
		CurrentOSVersion:     core.ParseVersion("10.0.19045"),
	}
	mc := comparator.New(opts, env.log)

	selection := mc.GetPreferredInstaller(manifest)
	if selection.Installer == nil {
		fmt.Fprintf(os.Stderr, "no applicable installer found (%d candidates rejected)\n", len(selection.Inapplicabilities))
		return fmt.Errorf("no applicable installer for %s", manifest.Id)
	}

	fmt.Printf("selected installer: architecture=%s type=%s scope=%s locale=%s\n",
		selection.Installer.Architecture,
		selection.Installer.EffectiveOrBaseType(),
		selection.Installer.Scope,
		selection.Installer.Locale,
	)
	return nil
}

func runPolicy(env *environment, args []string) error {
	if len(args) != 2 || args[0] != "show" {
		return fmt.Errorf("usage: policy show <policy-name>")
	}
	state := env.gate.State(policygate.TogglePolicy(args[1]))
	fmt.Printf("%s=%s\n", args[1], state)
	return nil
}
