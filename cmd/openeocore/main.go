// Command openeocore runs openEO process graphs against a STAC-backed
// raster source.
package main

func main() {
	Execute()
}
