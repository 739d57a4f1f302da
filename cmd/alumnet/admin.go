package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minKeyLength = 16

var adminKey string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator commands",
}

var adminHashKeyCmd = &cobra.Command{
	Use:   "hash-key",
	Short: "Hash an API key for auth.admins[].key_hash",
	RunE:  runAdminHashKey,
}

func init() {
	adminHashKeyCmd.Flags().StringVar(&adminKey, "key", "", "API key (will prompt if not provided)")
	adminCmd.AddCommand(adminHashKeyCmd)
}

func runAdminHashKey(cmd *cobra.Command, args []string) error {
	key := adminKey
	if key == "" {
		var err error
		key, err = promptKey()
		if err != nil {
			return err
		}
	}

	hash, err := hashKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func promptKey() (string, error) {
	fmt.Fprint(os.Stderr, "Enter API key: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Fprint(os.Stderr, "Confirm API key: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	if string(first) != string(second) {
		return "", fmt.Errorf("keys do not match")
	}
	return string(first), nil
}

func hashKey(key string) (string, error) {
	if len(key) < minKeyLength {
		return "", fmt.Errorf("API key must be at least %d characters", minKeyLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}
