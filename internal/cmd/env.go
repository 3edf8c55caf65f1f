package cmd

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mailcd/internal/env"
	"github.com/Iron-Ham/mailcd/internal/errors"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the environment configs of the workspace",
	Long: `Manage the named environment configs stored in the workspace.

The variables of the selected config (or of the default config when none is
selected) are passed to every stage. Variables are addressed as
[CONFIG/]VARIABLE; without CONFIG the selected config is used.`,
}

var envLsCmd = &cobra.Command{
	Use:   "ls [config]",
	Short: "List configs, or the variables of one config",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEnvLs,
}

var envCreateCmd = &cobra.Command{
	Use:   "create <config>",
	Short: "Create an empty config",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvCreate,
}

var envRmCmd = &cobra.Command{
	Use:   "rm <[config/]variable | config/>",
	Short: "Remove a variable, or a whole config when the reference ends in '/'",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvRm,
}

var envSelectCmd = &cobra.Command{
	Use:   "select <config>",
	Short: "Select the config used by builds",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvSelect,
}

var envSetCmd = &cobra.Command{
	Use:   "set <[config/]variable> <value>",
	Short: "Set a variable",
	Long: `Set a variable in a config.

A named config must exist (see 'mb env create'). Without a config name the
selected config is used; when nothing is selected the default config is
selected and created.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnvSet,
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envLsCmd)
	envCmd.AddCommand(envCreateCmd)
	envCmd.AddCommand(envRmCmd)
	envCmd.AddCommand(envSelectCmd)
	envCmd.AddCommand(envSetCmd)
}

func runEnvLs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		names, err := a.backend.Environments()
		if err != nil {
			return err
		}
		if !slices.Contains(names, args[0]) {
			return errors.NewNotFoundError("environment", args[0])
		}
		vars, err := a.backend.Variables(args[0])
		if err != nil {
			return err
		}
		printVars(a, vars)
		return nil
	}

	names, err := a.backend.Environments()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		a.printf("No environments (see 'mb env create')\n")
		return nil
	}
	selected, _ := a.backend.SelectedEnvironment()
	for _, name := range names {
		if name == selected {
			a.printf("%s *\n", name)
		} else {
			a.printf("%s\n", name)
		}
	}
	return nil
}

func printVars(a *app, vars *env.Vars) {
	for _, k := range vars.Keys() {
		v, _ := vars.Get(k)
		a.printf("%s = %s\n", k, v)
	}
}

func runEnvCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.backend.CreateEnvironment(args[0]); err != nil {
		return err
	}
	a.printf("Environment created: %s\n", args[0])
	return nil
}

func runEnvRm(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if name, ok := strings.CutSuffix(args[0], "/"); ok && name != "" && !strings.Contains(name, "/") {
		if err := a.backend.DeleteEnvironment(name); err != nil {
			return err
		}
		a.printf("Environment removed: %s\n", name)
		return nil
	}

	config, variable, err := env.ParseRef(args[0])
	if err != nil {
		return err
	}
	return a.backend.UnsetVariable(config, variable)
}

func runEnvSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.backend.SelectEnvironment(args[0]); err != nil {
		return err
	}
	a.printf("Environment selected: %s\n", args[0])
	return nil
}

func runEnvSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	config, variable, err := env.ParseRef(args[0])
	if err != nil {
		return err
	}
	return a.backend.SetVariable(config, variable, args[1])
}
