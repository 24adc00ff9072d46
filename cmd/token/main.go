package main

import (
	jwtPkg "EcosnapAI/pkg/jwt"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Mints an admin bearer token for the training endpoints.
func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", "operator", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	token, expiredAt, err := jwtPkg.SignAdminToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Unix(expiredAt, 0).Format(time.RFC3339))
}
