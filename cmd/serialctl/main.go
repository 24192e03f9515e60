// Command serialctl talks to serial devices from the shell.
package main

import "github.com/luhtfiimanal/go-native-serial/internal/cli"

func main() {
	cli.Execute()
}
