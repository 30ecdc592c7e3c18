package integration

import (
	"fmt"
	"time"
)

// TestAccount generates unique test account credentials using timestamp
func TestAccount(suffix string) (email, password, accountID string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	accountID = fmt.Sprintf("acct-%d-%s", ts, suffix)
	return
}
