package main

import (
	"roundup/cmd/handlers"
)

func main() {
	handlers.Execute()
}
