// Copyright 2024 ledcat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledcat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings",
	Long: `Prints the settings ledcat uses, as YAML: the settings file merged
over the built-in defaults.

Examples:
  ledcat config
  ledcat config -c ./stage.yaml
  ledcat config --path`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configShowPath bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "Print the settings file path only")
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if configShowPath {
		path := configPath
		if path == "" {
			path = config.SettingsPath()
		}
		fmt.Fprintln(out, path)
		return nil
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := settings.Marshal()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
