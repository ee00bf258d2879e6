package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokengen mints HS256 bearer tokens for calling the step-up API locally
func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token (JWT_SECRET)")
	issuer := flag.String("issuer", "simple-idm", "Issuer of the token")
	audience := flag.String("audience", "simple-idm", "Audience of the token")
	subject := flag.String("subject", "test-user", "Subject of the token (user ID)")
	roles := flag.String("roles", "", "Comma-separated roles, e.g. admin")
	email := flag.String("email", "", "Email claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	extraClaimsJSON := flag.String("claims", "{}", "Extra claims in JSON format")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	var extraClaims map[string]interface{}
	if err := json.Unmarshal([]byte(*extraClaimsJSON), &extraClaims); err != nil {
		fail("Failed to parse extra claims JSON", err)
	}

	now := time.Now()
	expiresAt := now.Add(*expiry)
	claims := jwt.MapClaims{}
	for k, v := range extraClaims {
		claims[k] = v
	}
	claims["sub"] = *subject
	claims["iss"] = *issuer
	claims["aud"] = *audience
	claims["iat"] = now.Unix()
	claims["exp"] = expiresAt.Unix()
	if *email != "" {
		claims["email"] = *email
	}
	if *roles != "" {
		var list []string
		for _, role := range strings.Split(*roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				list = append(list, role)
			}
		}
		claims["roles"] = list
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secret))
	if err != nil {
		fail("Failed to sign token", err)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiresAt.Format(time.RFC3339))
	case "debug":
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(*secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			fail("Failed to parse generated token", err)
		}

		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Header ===\n")
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(token.Claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
