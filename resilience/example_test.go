package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/rescache/resilience"
)

func ExampleCall() {
	policy, err := resilience.NewPolicy(resilience.PolicyConfig{
		Timeout: time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
		},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	attempts := 0
	users, err := resilience.Call(context.Background(), policy, func(context.Context) ([]string, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection reset")
		}
		return []string{"alice", "bob"}, nil
	})
	fmt.Println(users, err, attempts)
	// Output:
	// [alice bob] <nil> 2
}

func ExamplePermanent() {
	notFound := errors.New("user not found")
	r := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return resilience.Permanent(notFound)
	})
	fmt.Println(err, attempts)
	// Output:
	// user not found 1
}
