package main

import (
	"pricewatch-backend/cmd/ekatalog-cli/commands"
	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(serviceutil.SignalContext())
}
