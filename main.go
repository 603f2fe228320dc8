package main

import "github.com/jsphweid/melodyscore/cmd"

func main() {
	cmd.Execute()
}
