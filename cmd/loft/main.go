// Command loft is the command-line front end of the loft record cache.
package main

func main() {
	Execute()
}
