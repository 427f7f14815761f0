package acquisition_test

import (
	"testing"

	"go.viam.com/datalog/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}
