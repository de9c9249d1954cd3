// Package main provides the evalnet CLI.
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.1.0"

func main() {
	log.SetFlags(0)
	log.SetPrefix("evalnet: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "version":
		fmt.Printf("evalnet %s\n", version)
	case "xor":
		err = runXOR(args)
	case "init":
		err = runInit(args)
	case "inspect":
		err = runInspect(args, os.Stdout)
	case "help", "-h", "--help":
		usage()
	default:
		log.Printf("unknown command %q", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println("evalnet - neural board evaluation networks")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  xor        Train the XOR demo network and optionally save it")
	fmt.Println("  init       Create a default network from layer sizes and save it")
	fmt.Println("  inspect    Print the header and tensors of a model file")
	fmt.Println("")
	fmt.Println("Run 'evalnet <command> -h' for command flags.")
}
