// Command hello is a minimal program used by the Bin tests.
package main

import "fmt"

func main() {
	fmt.Println("Hello Bin!")
}
