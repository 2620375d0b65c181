package main

import "github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/cmd"

func main() {
	cmd.Execute()
}
