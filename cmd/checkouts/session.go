// cmd/checkouts/session.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/codr1/cockpit-checkouts/internal/session"
)

func runSession(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("session requires one of: set, show, clear")
	}

	fs := flag.NewFlagSet("session "+args[0], flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")

	switch args[0] {
	case "set":
		tenant := fs.String("tenant", "", "Tenant identifier to store")
		value := fs.String("value", "", "Raw JSON object to store; its first key is the tenant")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return sessionSet(ctx, *configPath, *tenant, *value, out)
	case "show":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return sessionShow(ctx, *configPath, out)
	case "clear":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return sessionClear(ctx, *configPath, out)
	default:
		return fmt.Errorf("unknown session command: %s", args[0])
	}
}

func sessionSet(ctx context.Context, configPath, tenant, value string, out io.Writer) error {
	if (tenant == "") == (value == "") {
		return fmt.Errorf("exactly one of -tenant or -value is required")
	}
	if tenant != "" {
		raw, err := json.Marshal(map[string]struct{}{tenant: {}})
		if err != nil {
			return fmt.Errorf("encode session entry: %w", err)
		}
		value = string(raw)
	}

	id, err := session.FirstKey(value)
	if err != nil {
		return fmt.Errorf("invalid session entry: %w", err)
	}

	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(ctx, cfg.Session.Key, value); err != nil {
		return err
	}
	fmt.Fprintf(out, "Stored session entry for tenant %s\n", id)
	return nil
}

func sessionShow(ctx context.Context, configPath string, out io.Writer) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	raw, found, err := store.Get(ctx, cfg.Session.Key)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(out, "No session entry stored")
		return nil
	}

	id, err := session.FirstKey(raw)
	if err != nil {
		fmt.Fprintf(out, "Invalid session entry (%v): %s\n", err, raw)
		return nil
	}
	fmt.Fprintf(out, "Tenant %s: %s\n", id, raw)
	return nil
}

func sessionClear(ctx context.Context, configPath string, out io.Writer) error {
	cfg, store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, cfg.Session.Key); err != nil {
		return err
	}
	fmt.Fprintln(out, "Session entry removed")
	return nil
}
