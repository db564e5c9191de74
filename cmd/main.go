package main

import (
	"log"

	"github.com/victornm/quizshare/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("quizshare: %v", err)
	}
}
