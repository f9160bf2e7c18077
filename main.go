package main

import "github.com/Morzio/Hair-Factory/cmd"

func main() {
	cmd.Execute()
}
