// slalog - SLA compliance for incident activity logs
//
// slalog measures how long each incident waited on a resolver during
// business hours and reports whether it met its SLA target.
package main

import (
	"os"

	"github.com/ccollicutt/slalog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
