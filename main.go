package main

import "github.com/edgeflare/ktable/cmd/ktable"

func main() {
	ktable.Main()
}
