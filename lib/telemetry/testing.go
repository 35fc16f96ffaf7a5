package telemetry

import (
	"context"
	"sync"
	"testing"
)

var setupTestMutex sync.Mutex
var setupTestEnvironments = map[string]bool{}

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once even across parallel tests. tests never export
// anywhere: when no telemetry.json5 is found the global providers stay
// no-ops.
func SetupForTesting(t testing.TB, serviceName string) func() {
	setupTestMutex.Lock()
	defer setupTestMutex.Unlock()

	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)

	tel, err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}
