// Command flowpatch fixes the error handling scopes of the exported
// SharePoint permission scanner flow.
package main

import "github.com/devicelab-dev/flowpatch/pkg/cli"

func main() {
	cli.Execute()
}
