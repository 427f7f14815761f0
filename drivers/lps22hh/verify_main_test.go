package lps22hh

import (
	"testing"

	"go.viam.com/datalog/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}
