// Command vmem is the CLI entry point for replaying memory-access traces
// against the simulated virtual-memory subsystem.
package main

func main() {
	Execute()
}
