package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/voltask/graphx/internal/session"
)

func init() {
	rootCmd.AddCommand(prefsCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [key] [value]",
	Short: "Get or set saved view preferences",
	Long: `Get or set the view preferences restored at startup.

Usage:
  gx prefs                   # Show all preferences
  gx prefs layoutName        # Get one value
  gx prefs layoutName grid   # Set a value
  gx prefs filterType skill  # Set the type filter ("all" for none)

Keys:
  layoutName   force, grid, circle, or hierarchy
  filterType   a node type, or all`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPrefs,
}

func runPrefs(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	if len(args) == 0 {
		all, err := db.Preferences()
		if err != nil {
			exitWithError(ExitError, "reading preferences: %v", err)
		}
		if !humanOutput {
			return outputJSON(all)
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			outputHuman("%-12s %s\n", k+":", all[k])
		}
		return nil
	}

	key := args[0]
	if key != session.PrefLayout && key != session.PrefFilter {
		exitWithError(ExitError, "unknown preference key: %s", key)
	}

	if len(args) == 1 {
		value, ok, err := db.GetPreference(key)
		if err != nil {
			exitWithError(ExitError, "reading preference: %v", err)
		}
		if humanOutput {
			fmt.Println(value)
			return nil
		}
		return outputJSON(PreferenceResponse{Key: key, Value: value, Set: ok})
	}

	// Apply through a session so the value is validated and normalised
	// the same way the explorer applies it.
	mgr := session.New(nil, session.WithPreferences(db))
	defer mgr.Close()

	switch key {
	case session.PrefLayout:
		if err := mgr.SetLayout(args[1]); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	case session.PrefFilter:
		mgr.SetFilter(args[1])
	}

	value, _, err := db.GetPreference(key)
	if err != nil {
		exitWithError(ExitError, "reading preference: %v", err)
	}
	if humanOutput {
		outputHuman("%s %s = %s\n", good.Sprint("✓"), key, value)
		return nil
	}
	return outputJSON(PreferenceResponse{Key: key, Value: value, Set: true})
}
