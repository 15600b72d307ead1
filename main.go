// Command layered-api serves a REST API built in layers: HTTP handlers decode and validate
// requests, services hold the business rules and repositories talk to the database. Run
// "layered-api serve" to start the server or "layered-api openapi" to export the API document.
package main

import "github.com/user/layered-api-go/cmd"

func main() {
	cmd.Execute()
}
