// Package testutils holds helpers shared by the tests of packages that spawn goroutines.
package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the package's tests and fails if any goroutine outlives them. Packages that
// start sensor workers or interrupt sources call it from TestMain.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m,
		// periph.io host drivers register a process wide polling goroutine the first time a bus is opened.
		goleak.IgnoreTopFunction("periph.io/x/host/v3/sysfs.(*eventsListener).loop"),
	)
}
