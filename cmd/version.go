package cmd

import "fmt"

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("cambio v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}
