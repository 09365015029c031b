//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the Loan API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <book_id> <user1_id> [user2_id ...]
//
// Or use the convenience environment variables:
//
//	BOOK_ID=<uuid>  USER_IDS=<uuid1>,<uuid2>,...  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines (one per user) all attempting to borrow the same book
//     simultaneously.
//  2. Prints how many got a loan vs. were rejected for lack of copies.
//
// The interesting number is loans-created vs. the book's available_copies at
// start: the availability check reads a remote snapshot, so concurrent
// creates can race past it — this script makes that window observable.
//
// Prerequisites:
//   - Loan service running (SERVER_ADDR), User and Book services reachable.
//   - The book and all users must already exist in their services.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8083"

type loanResult struct {
	UserID     string
	StatusCode int
	ErrorCode  string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	bookID := os.Getenv("BOOK_ID")
	userIDsEnv := os.Getenv("USER_IDS")

	var userIDs []string
	if userIDsEnv != "" {
		userIDs = strings.Split(userIDsEnv, ",")
	}

	// Support positional args: script <book_id> [user_ids...]
	args := os.Args[1:]
	if len(args) >= 1 {
		bookID = args[0]
	}
	if len(args) >= 2 {
		userIDs = args[1:]
	}

	if bookID == "" {
		log.Fatal("Usage: BOOK_ID=<uuid> USER_IDS=<u1,u2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <book_id> <user1_id> [user2_id ...]")
	}
	if len(userIDs) == 0 {
		log.Fatal("At least one user ID must be provided via USER_IDS env or positional args")
	}

	fmt.Printf("=== Loan Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("Book   : %s\n", bookID)
	fmt.Printf("Users  : %d\n\n", len(userIDs))

	results := make([]loanResult, len(userIDs))
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i, uid := range userIDs {
		wg.Add(1)
		go func(idx int, userID string) {
			defer wg.Done()
			<-start // wait for the barrier
			results[idx] = attemptLoan(serverAddr, bookID, strings.TrimSpace(userID))
		}(i, uid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)

	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var created, noCopies, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-38s err=%v\n", r.UserID, r.Err)
		case r.StatusCode == http.StatusCreated:
			created++
			fmt.Printf("  [LOAN] user=%-38s status=%d\n", r.UserID, r.StatusCode)
		case r.ErrorCode == "no_available_copies":
			noCopies++
			fmt.Printf("  [FULL] user=%-38s status=%d no copies left\n", r.UserID, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-38s status=%d code=%s\n", r.UserID, r.StatusCode, r.ErrorCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Loans created : %d\n", created)
	fmt.Printf("No copies     : %d\n", noCopies)
	fmt.Printf("Failures      : %d\n", failures)
	fmt.Printf("Total         : %d\n\n", len(userIDs))

	fmt.Println("--- Consistency Check ---")
	fmt.Println("Compare loans-created against the book's available_copies before the run.")
	fmt.Println("A surplus demonstrates the check-then-persist race on the remote snapshot;")
	fmt.Println("the availability count at the Book service shows the applied decrements.")

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed — check server logs for details.\n", failures)
		os.Exit(1)
	}
}

// attemptLoan sends POST /api/loans for the given user and book with a
// 14-day due date and parses the error code, if any.
func attemptLoan(serverAddr, bookID, userID string) loanResult {
	url := fmt.Sprintf("%s/api/loans", serverAddr)
	dueDate := time.Now().AddDate(0, 0, 14).Format(time.RFC3339)
	body := fmt.Sprintf(`{"user_id":%q,"book_id":%q,"due_date":%q}`, userID, bookID, dueDate)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		return loanResult{UserID: userID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return loanResult{UserID: userID, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}

	code, _ := parsed["code"].(string)
	return loanResult{
		UserID:     userID,
		StatusCode: resp.StatusCode,
		ErrorCode:  code,
	}
}
