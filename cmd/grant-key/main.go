// Package main provides a one-shot utility for service grant keys.
//
// Without flags it emits the asymmetric keypair used to verify admin
// grants. With -mint it signs a short-lived grant token using the
// private key from GATEHOUSE_SERVICE_GRANT_PRIVATE_KEY.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/platform/config"
	"github.com/gatehouselabs/gatehouse/internal/servicegrant"
	"github.com/gatehouselabs/gatehouse/internal/tools/grantkey"
)

func main() {
	mint := flag.Bool("mint", false, "mint a grant token instead of generating keys")
	issuer := flag.String("issuer", "", "grant issuer")
	audience := flag.String("audience", "gatehouse", "grant audience")
	scope := flag.String("scope", servicegrant.ScopeCredentialsManage, "grant scope")
	ttl := flag.Duration("ttl", 15*time.Minute, "grant lifetime")
	flag.Parse()

	if !*mint {
		if err := grantkey.Run(os.Stdout, nil); err != nil {
			config.Exitf("generate service grant key: %v", err)
		}
		return
	}

	privateKey, err := grantkey.DecodePrivateKey(os.Getenv("GATEHOUSE_SERVICE_GRANT_PRIVATE_KEY"))
	if err != nil {
		config.Exitf("read private key: %v", err)
	}
	grant, err := grantkey.Mint(grantkey.MintInput{
		PrivateKey: privateKey,
		Issuer:     *issuer,
		Audience:   *audience,
		Scope:      *scope,
		TTL:        *ttl,
	})
	if err != nil {
		config.Exitf("mint service grant: %v", err)
	}
	fmt.Println(grant)
}
