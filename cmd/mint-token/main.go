package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Suraj08344/examproct-backend/internal/config"
	"github.com/Suraj08344/examproct-backend/internal/service"
)

// mint-token signs a development JWT for exercising the API locally.
// Production tokens come from the identity platform; this CLI only
// exists so the session engine can be driven without one.
func main() {
	cfg := config.Load()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Mint Development Token ===")

	// Secret: prefer env config, prompt silently if unset.
	if cfg.JWTSecret == "" {
		fmt.Print("Enter JWT Secret: ")
		byteSecret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil || len(byteSecret) == 0 {
			fmt.Println("Error: JWT secret is required")
			return
		}
		cfg.JWTSecret = string(byteSecret)
	}

	// Token type
	fmt.Print("Token type (student/proctor) [student]: ")
	typeInput, _ := reader.ReadString('\n')
	typeInput = strings.TrimSpace(typeInput)

	var tokenType service.TokenType
	switch typeInput {
	case "", "student":
		tokenType = service.TokenTypeStudent
	case "proctor":
		tokenType = service.TokenTypeProctor
	default:
		fmt.Println("Error: token type must be student or proctor")
		return
	}

	// User ID
	fmt.Print("Enter User ID: ")
	userID, _ := reader.ReadString('\n')
	userID = strings.TrimSpace(userID)
	if userID == "" {
		fmt.Println("Error: User ID is required")
		return
	}

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	// TTL
	fmt.Print("Token lifetime [24h]: ")
	ttlInput, _ := reader.ReadString('\n')
	ttlInput = strings.TrimSpace(ttlInput)
	ttl := 24 * time.Hour
	if ttlInput != "" {
		parsed, err := time.ParseDuration(ttlInput)
		if err != nil || parsed <= 0 {
			fmt.Println("Error: lifetime must be a positive duration like 2h or 45m")
			return
		}
		ttl = parsed
	}

	authService := service.NewAuthService(cfg)
	token, err := authService.MintToken(tokenType, userID, name, email, ttl)
	if err != nil {
		fmt.Printf("Error: failed to sign token: %v\n", err)
		return
	}

	fmt.Println()
	fmt.Printf("Type:    %s\n", tokenType)
	fmt.Printf("User ID: %s\n", userID)
	fmt.Printf("Expires: %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
}
