// SPDX-License-Identifier: Apache-2.0

// Command mdriver replays allocation traces against the heap and reports
// correctness, utilisation and throughput.
package main

func main() {
	execute()
}
