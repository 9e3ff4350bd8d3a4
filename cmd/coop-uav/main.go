package main

import (
	"fmt"
	"os"

	// Import to register the simulation
	_ "github.com/picogrid/swarm-autonomy/cmd/coop-uav/simulation"
)

func main() {
	fmt.Println("coop-uav simulation registered. Use 'swarm-sim run coop-uav' to execute.")
	os.Exit(0)
}
