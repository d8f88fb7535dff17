package main

import "github.com/fiteanalytics/finx-go/cmd"

func main() {
	cmd.Execute()
}
