package main

import "video-pipeline/internal/cli"

func main() {
	cli.Main()
}
