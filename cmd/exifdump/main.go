// exifdump prints the descriptive metadata embedded in exported JPEGs.
// Useful for verifying an archive: unzip it and run exifdump on the files.
//
// Usage: exifdump FILE [FILE...]
package main

import (
	"fmt"
	"os"

	exiftool "github.com/barasher/go-exiftool"
)

var fields = []string{"ImageDescription", "XPTitle", "XPComment", "XPKeywords", "Artist"}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: exifdump FILE [FILE...]")
		os.Exit(2)
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start exiftool: %v\n", err)
		os.Exit(1)
	}
	defer et.Close()

	exitCode := 0
	for _, info := range et.ExtractMetadata(os.Args[1:]...) {
		fmt.Printf("%s:\n", info.File)
		if info.Err != nil {
			fmt.Printf("  error: %v\n", info.Err)
			exitCode = 1
			continue
		}
		for _, field := range fields {
			value, err := info.GetString(field)
			if err != nil {
				continue
			}
			fmt.Printf("  %-17s %s\n", field+":", value)
		}
	}
	os.Exit(exitCode)
}
