// Command testbin is a fixture program for testing the cmdsnap library.
// The first argument selects its behavior:
//   - "cat": copies stdin to stdout
//   - "count": prints the number of bytes read from stdin
//   - "exit N": exits with status N
//   - "stderr MSG": writes MSG and a newline to stderr, then exits with status 1
//   - "env KEY...": prints KEY=VALUE for each key, or KEY unset
//   - "signal": kills itself with SIGKILL
//   - "args ARG...": prints each argument on its own line
//   - "binary": writes bytes that are not valid UTF-8
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: testbin <mode> [args...]")
		os.Exit(2)
	}
	args := os.Args[2:]

	switch os.Args[1] {
	case "cat":
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "cat: %v\n", err)
			os.Exit(1)
		}

	case "count":
		n, err := io.Copy(io.Discard, os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "count: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(n)

	case "exit":
		code := 0
		if len(args) > 0 {
			c, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "exit: invalid code %q\n", args[0])
				os.Exit(2)
			}
			code = c
		}
		os.Exit(code)

	case "stderr":
		for _, a := range args {
			fmt.Fprintln(os.Stderr, a)
		}
		os.Exit(1)

	case "env":
		for _, k := range args {
			if v, ok := os.LookupEnv(k); ok {
				fmt.Printf("%s=%s\n", k, v)
			} else {
				fmt.Printf("%s unset\n", k)
			}
		}

	case "signal":
		kill()

	case "args":
		for _, a := range args {
			fmt.Println(a)
		}

	case "binary":
		os.Stdout.Write([]byte{'o', 'k', ' ', 0xff, 0xfe, '\n'})

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", os.Args[1])
		os.Exit(2)
	}
}
