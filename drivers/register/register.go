// Package register registers all sensor models.
package register

import (
	// register the models.
	_ "go.viam.com/datalog/drivers/hts221"
	_ "go.viam.com/datalog/drivers/lps22hh"
	_ "go.viam.com/datalog/drivers/stts751"
)
