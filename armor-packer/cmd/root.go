package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"armor-tools/go/pkg/config"
	"armor-tools/go/pkg/logbowl"
	"armor-tools/go/pkg/packer"
	"armor-tools/go/pkg/runner"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "armor-packer"

// app carries the state shared by all commands of one invocation.
type app struct {
	log        logbowl.Logger
	cfg        config.Config
	configFile string
	configUsed string
	newRunner  func(log logbowl.Logger) runner.Runner
}

func newApp() *app {
	return &app{
		newRunner: func(log logbowl.Logger) runner.Runner { return runner.New(log) },
	}
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"type":    config.KeyType,
	"python":  config.KeyPython,
	"pyarmor": config.KeyPyarmor,
	"debug":   config.KeyDebug,
	"exclude": config.KeyArchiveExclude,
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Pack obfuscated Python scripts with PyInstaller, py2exe, py2app or cx_Freeze.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default ./armorpack.toml)")
	root.PersistentFlags().Bool("debug", false, "Verbose logging; stream the output of external tools")

	root.AddCommand(newPackCommand(a))
	root.AddCommand(newInfoCommand(a))
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newVersionCommand(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return err
	}
	cfg, used, err := config.Load(v, config.LoadOptions{ConfigFile: a.configFile})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.configUsed = used

	opts := logbowl.Options{Output: cmd.ErrOrStderr()}
	if cfg.Debug {
		opts.Level = "DEBUG"
	}
	a.log = logbowl.New(appName, opts)
	if used != "" {
		a.log.Debug("config", "load", "success", "Loaded config file", "path", used)
	}
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the command line and exits 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp()
	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		if a.log.Logger == nil {
			a.log = logbowl.Create(appName)
		}
		reportError(a.log, err)
		stop()
		os.Exit(1)
	}
}

func reportError(log logbowl.Logger, err error) {
	var cmdErr *runner.CommandError
	var missing *packer.MissingBuildScriptError
	switch {
	case errors.As(err, &missing):
		log.Error("packer", "validate", "notfound", "Build script not found", "path", missing.Path)
		log.Info("packer", "validate", "info", "Generate it with: "+missing.Hint)
	case errors.As(err, &cmdErr):
		log.Error("command", "run", "failure", "External command failed",
			"command", strings.Join(cmdErr.Args, " "), "exit_code", cmdErr.ExitCode, "error", err)
	default:
		log.Error("system", "stop", "error", "Failed to execute command", "error", err)
	}
}
