package main

import "github.com/TFMV/influx-assist/cmd"

func main() {
	cmd.Execute()
}
