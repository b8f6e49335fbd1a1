// Command otto is a project-local task runner: a DAG execution engine
// with mtime-based skip caching, class-capped concurrent scheduling,
// and durable run history.
package main

import "github.com/druarnfield/otto/internal/cli"

func main() {
	cli.Execute()
}
