/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/prompt"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List roles, pipeline stages and intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tID\tNAME\tDESCRIPTION")
		for i, r := range catalog.Roles() {
			fmt.Fprintf(w, "%d/%d\t%s\t%s\t%s\n", i+1, catalog.Stages(), r.ID, r.Name, r.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nAgent pipeline: %s\n\n", catalog.PipelineLabel)

		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INTENT\tLABEL\tCOMPLEXITY\tSTEPS")
		for _, in := range catalog.Intents() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", in.ID, in.Label, in.Complexity, strings.Join(in.Steps, " / "))
		}
		return w.Flush()
	},
}

var (
	previewMode   string
	previewIntent string
	previewRole   string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the prompt preview for a mode, intent and role",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := internal.ParseMode(previewMode)
		if err != nil {
			return err
		}
		intent, err := catalog.ParseIntent(previewIntent)
		if err != nil {
			return err
		}
		role, err := catalog.ParseRole(previewRole)
		if err != nil {
			return err
		}

		text, err := prompt.Preview(mode, intent, role)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&previewMode, "mode", "llm", "mode: llm or agent")
	previewCmd.Flags().StringVar(&previewIntent, "intent", "literal", "intent id or label")
	previewCmd.Flags().StringVar(&previewRole, "role", "draft", "role id")
}
