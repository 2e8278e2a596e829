package main

import "amazon-scraper/cmd"

func main() {
	cmd.Execute()
}
