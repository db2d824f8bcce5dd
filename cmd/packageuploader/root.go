package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/joho/godotenv"
	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/operations"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

type options struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCommand(logger log.Logger) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "packageuploader",
		Short: "Upload game packages to Partner Center and publish them",
		Long: `Runs the operation described by a JSON configuration file.

Supported operations: ` + strings.Join([]string{
			config.OperationUploadPackage,
			config.OperationGetProduct,
			config.OperationPublishPackages,
			config.OperationRemovePackages,
		}, ", ") + `.

The Azure AD client secret is read from ` + config.ClientSecretEnvKey + `.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "operation configuration file (JSON)")
	flags.StringVar(&opts.envFile, "env-file", defaultEnvFile, "file with environment variables to load before running")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests and responses")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, opts *options, logger log.Logger) error {
	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}
	logger.EnableDebugLog(opts.verbose)

	loader := config.NewLoader(env.NewRepository(), logger)
	name, err := loader.OperationName(opts.configPath)
	if err != nil {
		return err
	}

	switch name {
	case config.OperationUploadPackage:
		var cfg config.UploadPackageConfig
		runner, err := prepare(loader, opts, &cfg, logger)
		if err != nil {
			return err
		}
		result, err := runner.UploadPackage(ctx, &cfg)
		if err != nil {
			return err
		}
		logger.Println()
		logger.Donef("Package %s is available on %s", result.Package.ID, result.Branch.Name)
	case config.OperationGetProduct:
		var cfg config.GetProductConfig
		runner, err := prepare(loader, opts, &cfg, logger)
		if err != nil {
			return err
		}
		if _, err := runner.GetProduct(ctx, &cfg); err != nil {
			return err
		}
	case config.OperationPublishPackages:
		var cfg config.PublishPackagesConfig
		runner, err := prepare(loader, opts, &cfg, logger)
		if err != nil {
			return err
		}
		submission, err := runner.PublishPackages(ctx, &cfg)
		if err != nil {
			return err
		}
		logger.Println()
		logger.Donef("Submission %s published", submission.ID)
	case config.OperationRemovePackages:
		var cfg config.RemovePackagesConfig
		runner, err := prepare(loader, opts, &cfg, logger)
		if err != nil {
			return err
		}
		if _, err := runner.RemovePackages(ctx, &cfg); err != nil {
			return err
		}
	default:
		return errkind.ConfigError("unknown operationName %q", name)
	}
	return nil
}

// prepare loads cfg and wires a runner for it.
func prepare(loader *config.Loader, opts *options, cfg config.Config, logger log.Logger) (*operations.Runner, error) {
	if err := loader.Load(opts.configPath, cfg); err != nil {
		return nil, err
	}
	base := cfg.BaseConfig()
	if opts.verbose {
		base.Settings.Verbose = true
	}
	return operations.NewFromConfig(*base, logger)
}

// loadEnvFile loads path into the environment without overriding set
// variables. A missing default file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
