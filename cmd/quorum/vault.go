package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/vault"
)

func runVault(args []string) error {
	if len(args) == 0 {
		printVaultUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	passphrase := cfg.Vault.Passphrase
	if passphrase == "" {
		return fmt.Errorf("QUORUM_VAULT_PASSPHRASE environment variable is required")
	}
	v := vault.New(passphrase)

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "list":
		return vaultList(db)
	case "set":
		return vaultSet(db, v, args[1:])
	case "get":
		return vaultGet(db, v, args[1:])
	case "delete":
		return vaultDelete(db, args[1:])
	default:
		printVaultUsage()
		return fmt.Errorf("unknown vault command: %s", args[0])
	}
}

func printVaultUsage() {
	fmt.Fprintf(os.Stderr, `Usage: quorum vault <command>

Commands:
  list                List all secrets (metadata only)
  set <name> <value>  Store a secret
  get <name>          Retrieve and decrypt a secret
  delete <name>       Delete a secret

Environment:
  QUORUM_VAULT_PASSPHRASE   Required. Encryption passphrase.
`)
}

func vaultList(db *store.Store) error {
	secrets, err := db.ListSecrets()
	if err != nil {
		return err
	}
	if len(secrets) == 0 {
		fmt.Println("No secrets stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED\tUPDATED")
	for _, sec := range secrets {
		fmt.Fprintf(w, "%s\t%s\t%s\n", sec.Name,
			sec.CreatedAt.Format("2006-01-02 15:04"),
			sec.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func vaultSet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: quorum vault set <name> <value>")
	}
	name, value := args[0], args[1]

	ct, nonce, err := v.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if err := db.SaveSecret(&store.Secret{
		ID:    uuid.NewString(),
		Name:  name,
		Value: ct,
		Nonce: nonce,
	}); err != nil {
		return err
	}
	fmt.Printf("Secret %s saved.\n", name)
	return nil
}

func vaultGet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quorum vault get <name>")
	}
	sec, err := db.GetSecretByName(args[0])
	if err != nil {
		return err
	}
	if sec == nil {
		return fmt.Errorf("secret %s not found", args[0])
	}

	plain, err := v.Decrypt(sec.Value, sec.Nonce)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	fmt.Println(string(plain))
	return nil
}

func vaultDelete(db *store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: quorum vault delete <name>")
	}
	if err := db.DeleteSecret(args[0]); err != nil {
		return err
	}
	fmt.Printf("Secret %s deleted.\n", args[0])
	return nil
}
