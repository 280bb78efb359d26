// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/nativedeps/nativedeps/cmd/nativedeps"

func main() {
	cmd.Execute()
}
