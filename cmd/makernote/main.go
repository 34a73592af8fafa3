// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

// Command makernote decodes the Apple iOS MakerNote of images or raw MakerNote blobs.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
