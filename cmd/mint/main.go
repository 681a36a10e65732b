// Mint prints a signed API token for a subject and role; operator tooling.
package main

import (
	"flag"
	"fmt"
	"log"

	"school-payment-ledger/internal/config"
	"school-payment-ledger/internal/infra/web"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("subject", "", "token subject (operator id)")
	role := flag.String("role", web.RoleStaff, "token role: admin|staff|user")
	flag.Parse()

	if *subject == "" {
		log.Fatal("-subject is required")
	}
	switch *role {
	case web.RoleAdmin, web.RoleStaff, web.RoleUser:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	auth := web.NewAuthManager(cfg.Server.APISecret, cfg.Server.TokenTTL)
	tok, err := auth.Mint(*subject, *role)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(tok)
}
