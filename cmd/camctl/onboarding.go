package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var onboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Show the publishing wizard state",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := dash.Onboarding().State()
		if jsonOutput {
			return printJSON(st)
		}
		fmt.Printf("completed=%v skipped=%v show_wizard=%v\n", st.Completed, st.Skipped, st.ShowWizard)
		return nil
	},
}

var onboardingResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget completion and skip so the wizard shows again",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dash.Onboarding().Reset(); err != nil {
			return err
		}
		fmt.Println("Onboarding state reset")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(onboardingCmd)
	onboardingCmd.AddCommand(onboardingResetCmd)
}
