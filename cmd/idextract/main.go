package main

import "github.com/MeKo-Tech/idextract/cmd/idextract/cmd"

func main() {
	cmd.Execute()
}
