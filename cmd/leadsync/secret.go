package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/leadsync/internal/secrets"
)

var secretValue string

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage API keys stored in the OS keychain",
	Long: "Store API keys in the OS keychain and reference them from config as\n" +
		"`keyring:<account>`, e.g. classifier.api_key: keyring:gemini",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store a secret (reads the value from stdin unless --value is given)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

func init() {
	secretSetCmd.Flags().StringVar(&secretValue, "value", "", "secret value (visible in shell history; prefer stdin)")
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	value := secretValue
	if value == "" {
		fmt.Fprintf(os.Stderr, "value for %s: ", args[0])
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret from stdin: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}

	if err := secrets.Set(args[0], value); err != nil {
		return err
	}
	fmt.Printf("stored %s in the keychain; reference it as %s%s\n", args[0], secrets.RefPrefix, args[0])
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	if err := secrets.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s from the keychain\n", args[0])
	return nil
}
