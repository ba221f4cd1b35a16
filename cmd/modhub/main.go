// SPDX-License-Identifier: MPL-2.0

// modhub is a local package manager for hub modules: named, versioned
// directories of code installed from a registry, a directory, an archive
// or a URL.
package main

func main() {
	Execute()
}
